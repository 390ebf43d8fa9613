package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TaxiAnalysis/src/config"
	"TaxiAnalysis/src/datasource/file"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"Flash Cab", "Flash Cab"},
		{time.Date(2017, 11, 25, 16, 0, 0, 0, time.UTC), "2017-11-25 16:00:00"},
		{2410.0, "2410"},
		{float32(0.5), "0.5"},
		{int64(19558), "19558"},
		{int32(50), "50"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteRecordsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract.csv")
	records := [][]string{
		{"2017-11-25 16:00:00", "Good", "2410"},
		{"2017-11-25 14:00:00", "Bad", "1920"},
	}
	if err := WriteRecords(path, file.ExtractColumns, records); err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}

	rows, err := file.LoadExtract(path, "")
	if err != nil {
		t.Fatalf("LoadExtract: %v", err)
	}
	if len(rows) != 2 || rows[1].WeatherConditions != "Bad" || rows[1].DurationSeconds != 1920 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestWriteRecordsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := WriteRecords(path, file.ExtractColumns, nil); err == nil {
		t.Error("expected error for empty result")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be written")
	}
}

func TestExportsMatchLoaderColumns(t *testing.T) {
	want := map[string][]string{
		config.DatasetTrips:         file.TripColumns,
		config.DatasetWeather:       file.WeatherColumns,
		config.DatasetExtract:       file.ExtractColumns,
		config.DatasetCompanies:     file.CompanyColumns,
		config.DatasetNeighborhoods: file.NeighborhoodColumns,
	}
	for _, ex := range Exports() {
		cols, ok := want[ex.Dataset]
		if !ok {
			t.Errorf("unexpected dataset %s", ex.Dataset)
			continue
		}
		if strings.Join(ex.Columns, ",") != strings.Join(cols, ",") {
			t.Errorf("%s columns = %v, want %v", ex.Dataset, ex.Columns, cols)
		}
		delete(want, ex.Dataset)
	}
	if len(want) != 0 {
		t.Errorf("datasets without export: %v", want)
	}
}

func TestExtractQueryFilters(t *testing.T) {
	for _, ex := range Exports() {
		if ex.Dataset != config.DatasetExtract {
			continue
		}
		if len(ex.Args) != 2 || ex.Args[0] != 50 || ex.Args[1] != 63 {
			t.Errorf("args = %v", ex.Args)
		}
		if !strings.Contains(ex.Query, "EXTRACT(DOW FROM t.start_ts) = 6") {
			t.Error("extract query lacks the Saturday filter")
		}
	}
}
