package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TaxiAnalysis/src/config"
	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/storage"
)

const tripsCSV = `trip_id,cab_id,start_ts,end_ts,duration_seconds,distance_miles,pickup_location_id,dropoff_location_id
1,c1,2017-11-25 10:05:00,2017-11-25 10:39:08,2048,17.2,50,63
2,c2,2017-11-25 10:30:00,2017-11-25 11:11:40,2500,17.9,50,63
3,c3,2017-11-25 11:00:00,2017-11-25 11:36:40,2200,17.5,50,63
4,c1,2017-11-25 12:10:00,2017-11-25 12:35:00,1500,17.1,50,63
5,c2,2017-11-18 09:00:00,2017-11-18 09:26:40,1600,17.3,50,63
6,c3,2017-11-18 09:45:00,2017-11-18 10:10:50,1550,17.0,50,63
7,c1,2017-11-24 10:00:00,2017-11-24 10:30:00,1800,17.2,50,63
8,c2,2017-11-25 10:00:00,2017-11-25 10:20:00,1200,9.4,50,8
9,c3,2017-11-25 20:00:00,2017-11-25 20:30:00,1800,17.2,50,63
`

const weatherCSV = `record_id,ts,temperature,description
1,2017-11-25 10:00:00,40.1,light rain
2,2017-11-25 11:00:00,39.0,thunderstorm with rain
3,2017-11-25 12:00:00,41.2,broken clouds
4,2017-11-18 09:00:00,35.0,clear sky
5,2017-11-24 10:00:00,30.0,rain
`

const companiesCSV = `company_name,trips_amount
Flash Cab,19558
Taxi Affiliation Services,11422
Medallion Leasing,10367
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	base := t.TempDir()
	cfg := &config.Config{
		DataDir:   filepath.Join(base, "data"),
		OutputDir: filepath.Join(base, "output"),
		Variance:  config.VariancePooled,
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	logger, err := storage.NewLogger(filepath.Join(base, "test.log"), io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })

	var out bytes.Buffer
	a := newApp(cfg, config.DefaultDataConfig(), logger, &out)
	a.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	return a, &out
}

func TestAnalyzeRawInputs(t *testing.T) {
	a, out := newTestApp(t)
	a.cfg.CrossCheck = true
	writeFile(t, a.cfg.DataDir, "trips.csv", tripsCSV)
	writeFile(t, a.cfg.DataDir, "weather_records.csv", weatherCSV)
	writeFile(t, a.cfg.DataDir, "moved_project_sql_result_01.csv", companiesCSV)

	rep, err := a.analyze(context.Background())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rep.Source != SourceRaw {
		t.Errorf("source = %s", rep.Source)
	}
	want := model.JoinStats{TotalTrips: 9, RouteMatched: 8, SaturdayMatched: 7, DroppedNoWeather: 1, Joined: 6}
	if rep.Stats != want {
		t.Errorf("stats = %+v, want %+v", rep.Stats, want)
	}
	if !rep.Result.RejectNull || rep.Result.BadSummary.Count != 3 || rep.Result.GoodSummary.Count != 3 {
		t.Errorf("result = %+v", rep.Result)
	}
	if rep.CrossCheck != "ok (6 rows)" {
		t.Errorf("crosscheck = %q", rep.CrossCheck)
	}
	if len(rep.Companies) != 3 || rep.Companies[0].CompanyName != "Flash Cab" || rep.Neighborhoods != nil {
		t.Errorf("companies = %+v neighborhoods = %+v", rep.Companies, rep.Neighborhoods)
	}

	for _, name := range []string{WorkbookName, ObservationsName} {
		if _, err := os.Stat(filepath.Join(a.cfg.OutputDir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	if !strings.Contains(out.String(), "Reject H0") {
		t.Errorf("console output missing conclusion:\n%s", out.String())
	}
}

func TestAnalyzeExtractFallback(t *testing.T) {
	a, _ := newTestApp(t)
	writeFile(t, a.cfg.DataDir, "moved_project_sql_result_07.csv", `start_ts,weather_conditions,duration_seconds
2017-11-25 16:00:00,Good,2410.0
2017-11-25 14:00:00,Good,1920.0
2017-11-25 12:00:00,Good,1543.0
2017-11-04 10:00:00,Good,2512.0
2017-11-11 07:00:00,Good,1440.0
2017-11-11 04:00:00,Bad,1500.0
2017-11-04 16:00:00,Bad,2969.0
2017-11-18 11:00:00,Bad,2280.0
`)

	rep, err := a.analyze(context.Background())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rep.Source != SourceExtract || rep.Stats.Joined != 8 {
		t.Errorf("source = %s stats = %+v", rep.Source, rep.Stats)
	}
	if rep.Result.PValue <= 0 || rep.Result.PValue > 1 {
		t.Errorf("p = %v", rep.Result.PValue)
	}
}

func TestAnalyzeStageErrors(t *testing.T) {
	tests := []struct {
		name    string
		extract string
		stage   string
	}{
		{"no input", "", StageLoad},
		{"bad label", "start_ts,weather_conditions,duration_seconds\n2017-11-25 16:00:00,Rainy,2410\n", StageClassify},
		{"nothing on saturday", "start_ts,weather_conditions,duration_seconds\n2017-11-24 16:00:00,Good,2410\n", StageJoin},
		{"one bad trip", "start_ts,weather_conditions,duration_seconds\n" +
			"2017-11-25 16:00:00,Bad,2000\n2017-11-25 12:00:00,Good,1900\n2017-11-18 12:00:00,Good,2100\n", StageTest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t)
			if tt.extract != "" {
				writeFile(t, a.cfg.DataDir, "moved_project_sql_result_07.csv", tt.extract)
			}
			_, err := a.analyze(context.Background())
			var se *model.StageError
			if !errors.As(err, &se) {
				t.Fatalf("expected StageError, got %v", err)
			}
			if se.Stage != tt.stage {
				t.Errorf("stage = %s, want %s (%v)", se.Stage, tt.stage, err)
			}
		})
	}

	a, _ := newTestApp(t)
	writeFile(t, a.cfg.DataDir, "moved_project_sql_result_07.csv", tests[3].extract)
	_, err := a.analyze(context.Background())
	var ide *model.InsufficientDataError
	if !errors.As(err, &ide) || ide.Bad != 1 || ide.Good != 2 {
		t.Errorf("expected InsufficientDataError, got %v", err)
	}
}

func TestRunPushesWebhook(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		received <- body
	}))
	defer srv.Close()

	a, _ := newTestApp(t)
	a.cfg.Webhook.URL = srv.URL
	a.cfg.Webhook.Timeout = config.Duration(time.Second)
	writeFile(t, a.cfg.DataDir, "trips.csv", tripsCSV)
	writeFile(t, a.cfg.DataDir, "weather_records.csv", weatherCSV)

	if err := a.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	select {
	case body := <-received:
		if body["source"] != SourceRaw || body["reject_null"] != true {
			t.Errorf("payload = %v", body)
		}
	default:
		t.Fatal("webhook not called")
	}
}
