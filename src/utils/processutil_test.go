package utils

import (
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2017, 11, 25, 16, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2017-11-25 16:00:00", want, false},
		{"2017-11-25T16:00:00", want, false},
		{"2017-11-25T16:00:00-06:00", want, false},
		{"2017/11/25 16:00:00", want, false},
		{" 2017-11-25 16:00:00 ", want, false},
		{"2017-11-25", time.Date(2017, 11, 25, 0, 0, 0, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"25.11.2017", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTruncateHour(t *testing.T) {
	in := time.Date(2017, 11, 25, 16, 42, 13, 5, time.UTC)
	got := TruncateHour(in)
	if want := time.Date(2017, 11, 25, 16, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("TruncateHour = %v, want %v", got, want)
	}
}

func TestMissingColumns(t *testing.T) {
	df := dataframe.LoadRecords([][]string{
		{"start_ts", "duration_seconds"},
		{"2017-11-25 16:00:00", "2410"},
	})
	missing := MissingColumns(df, []string{"start_ts", "weather_conditions", "duration_seconds"})
	if len(missing) != 1 || missing[0] != "weather_conditions" {
		t.Errorf("MissingColumns = %v", missing)
	}
	if !HasColumn(df, "start_ts") {
		t.Error("HasColumn(start_ts) = false")
	}
}
