package sqlcheck

import (
	"context"
	"testing"
	"time"

	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/processor"
)

var sat = time.Date(2017, 11, 25, 16, 0, 0, 0, time.UTC)

func fixtures() ([]model.Trip, []model.WeatherRecord) {
	trips := []model.Trip{
		{TripID: 3, StartTS: sat.Add(10 * time.Minute), EndTS: sat.Add(50 * time.Minute), DurationSeconds: 2410, PickupLocationID: 50, DropoffLocationID: 63},
		{TripID: 1, StartTS: sat.Add(-2 * time.Hour), EndTS: sat, DurationSeconds: 1500, PickupLocationID: 50, DropoffLocationID: 63},
		{TripID: 2, StartTS: sat.AddDate(0, 0, -1), DurationSeconds: 1700, PickupLocationID: 50, DropoffLocationID: 63},
		{TripID: 4, StartTS: sat, DurationSeconds: 1200, PickupLocationID: 8, DropoffLocationID: 63},
		{TripID: 5, StartTS: sat.Add(4 * time.Hour), DurationSeconds: 2000, PickupLocationID: 50, DropoffLocationID: 63},
	}
	weather := []model.WeatherRecord{
		{RecordID: 20, TS: sat, Description: "Light Rain"},
		{RecordID: 21, TS: sat.Add(20 * time.Minute), Description: "clear sky"}, // 同一小时，被忽略
		{RecordID: 22, TS: sat.Add(-2 * time.Hour), Description: "few clouds"},
		{RecordID: 23, TS: sat.AddDate(0, 0, -1), Description: "thunderstorm"},
	}
	return trips, weather
}

func TestCrossCheckAgrees(t *testing.T) {
	trips, weather := fixtures()
	obs, _ := processor.JoinTrips(trips, weather)

	report, err := CrossCheck(context.Background(), trips, weather, obs)
	if err != nil {
		t.Fatalf("CrossCheck: %v", err)
	}
	if !report.OK() {
		t.Errorf("expected agreement, got %+v", report)
	}
	if report.SQLRows != 2 {
		t.Errorf("SQLRows = %d, want 2", report.SQLRows)
	}
}

func TestCrossCheckDetectsMismatch(t *testing.T) {
	trips, weather := fixtures()
	obs, _ := processor.JoinTrips(trips, weather)
	obs[0].WeatherConditions = model.Bad
	obs = obs[:1]

	report, err := CrossCheck(context.Background(), trips, weather, obs)
	if err != nil {
		t.Fatal(err)
	}
	if report.OK() {
		t.Fatal("expected mismatches")
	}
	if len(report.Mismatches) != 2 {
		t.Errorf("mismatches = %v", report.Mismatches)
	}
}

func TestQueryLabels(t *testing.T) {
	trips, weather := fixtures()
	db, err := Open()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	if err := Load(ctx, db, trips, weather); err != nil {
		t.Fatal(err)
	}
	order, rows, err := Query(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 3 {
		t.Fatalf("order = %v", order)
	}
	if rows[1].label != "Good" || rows[3].label != "Bad" {
		t.Errorf("rows = %+v", rows)
	}
}
