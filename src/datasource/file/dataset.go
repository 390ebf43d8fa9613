package file

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/utils"

	"github.com/go-gota/gota/dataframe"
)

// 各数据集必需的列
var (
	TripColumns = []string{
		"trip_id", "cab_id", "start_ts", "end_ts", "duration_seconds",
		"distance_miles", "pickup_location_id", "dropoff_location_id",
	}
	WeatherColumns      = []string{"record_id", "ts", "temperature", "description"}
	ExtractColumns      = []string{"start_ts", "weather_conditions", "duration_seconds"}
	CompanyColumns      = []string{"company_name", "trips_amount"}
	NeighborhoodColumns = []string{"dropoff_location_name", "average_trips"}
)

// table 按列名访问的字符串表
type table struct {
	source string
	index  map[string]int
	rows   [][]string
}

func newTable(source string, df dataframe.DataFrame, required []string) (*table, error) {
	if missing := utils.MissingColumns(df, required); len(missing) > 0 {
		return nil, &model.MalformedInputError{Source: source, Column: missing[0]}
	}
	records := df.Records()
	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[name] = i
	}
	return &table{source: source, index: index, rows: records[1:]}, nil
}

func (t *table) len() int { return len(t.rows) }

func (t *table) str(row int, col string) string {
	return t.rows[row][t.index[col]]
}

func (t *table) malformed(row int, col string, err error) error {
	return &model.MalformedInputError{
		Source: t.source,
		Column: col,
		Row:    row + 1,
		Value:  t.str(row, col),
		Err:    err,
	}
}

func (t *table) float(row int, col string, nonNegative bool) (float64, error) {
	raw := strings.TrimSpace(t.str(row, col))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, t.malformed(row, col, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, t.malformed(row, col, fmt.Errorf("not a finite number"))
	}
	if nonNegative && v < 0 {
		return 0, t.malformed(row, col, fmt.Errorf("negative value"))
	}
	return v, nil
}

// integer 兼容 pandas 导出的 "50.0" 形式
func (t *table) integer(row int, col string) (int64, error) {
	v, err := t.float(row, col, false)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, t.malformed(row, col, fmt.Errorf("not an integer"))
	}
	return int64(v), nil
}

func (t *table) time(row int, col string) (time.Time, error) {
	ts, err := parseCellTime(t.str(row, col))
	if err != nil {
		return time.Time{}, t.malformed(row, col, err)
	}
	return ts, nil
}

func load(path, sheet string, required []string) (*table, error) {
	df, err := ReadTable(path, sheet)
	if err != nil {
		return nil, err
	}
	return newTable(path, df, required)
}

// LoadTrips 读取行程表
func LoadTrips(path, sheet string) ([]model.Trip, error) {
	t, err := load(path, sheet, TripColumns)
	if err != nil {
		return nil, err
	}
	return tripsFromTable(t)
}

func tripsFromTable(t *table) ([]model.Trip, error) {
	trips := make([]model.Trip, 0, t.len())
	for i := 0; i < t.len(); i++ {
		var (
			tr  model.Trip
			err error
		)
		if tr.TripID, err = t.integer(i, "trip_id"); err != nil {
			return nil, err
		}
		tr.CabID = strings.TrimSpace(t.str(i, "cab_id"))
		if tr.StartTS, err = t.time(i, "start_ts"); err != nil {
			return nil, err
		}
		if tr.EndTS, err = t.time(i, "end_ts"); err != nil {
			return nil, err
		}
		if tr.DurationSeconds, err = t.float(i, "duration_seconds", true); err != nil {
			return nil, err
		}
		if tr.DistanceMiles, err = t.float(i, "distance_miles", true); err != nil {
			return nil, err
		}
		pickup, err := t.integer(i, "pickup_location_id")
		if err != nil {
			return nil, err
		}
		dropoff, err := t.integer(i, "dropoff_location_id")
		if err != nil {
			return nil, err
		}
		tr.PickupLocationID, tr.DropoffLocationID = int(pickup), int(dropoff)
		trips = append(trips, tr)
	}
	return trips, nil
}

// LoadWeather 读取天气记录表
func LoadWeather(path, sheet string) ([]model.WeatherRecord, error) {
	t, err := load(path, sheet, WeatherColumns)
	if err != nil {
		return nil, err
	}
	return weatherFromTable(t)
}

func weatherFromTable(t *table) ([]model.WeatherRecord, error) {
	records := make([]model.WeatherRecord, 0, t.len())
	for i := 0; i < t.len(); i++ {
		var (
			w   model.WeatherRecord
			err error
		)
		if w.RecordID, err = t.integer(i, "record_id"); err != nil {
			return nil, err
		}
		if w.TS, err = t.time(i, "ts"); err != nil {
			return nil, err
		}
		if w.Temperature, err = t.float(i, "temperature", false); err != nil {
			return nil, err
		}
		w.Description = t.str(i, "description")
		records = append(records, w)
	}
	return records, nil
}

// ExtractRow 预过滤 SQL 结果(result_07)中的一行
type ExtractRow struct {
	StartTS           time.Time
	WeatherConditions string
	DurationSeconds   float64
}

// LoadExtract 读取 SQL 预过滤结果
func LoadExtract(path, sheet string) ([]ExtractRow, error) {
	t, err := load(path, sheet, ExtractColumns)
	if err != nil {
		return nil, err
	}
	rows := make([]ExtractRow, 0, t.len())
	for i := 0; i < t.len(); i++ {
		var (
			r   ExtractRow
			err error
		)
		if r.StartTS, err = t.time(i, "start_ts"); err != nil {
			return nil, err
		}
		r.WeatherConditions = strings.TrimSpace(t.str(i, "weather_conditions"))
		if r.DurationSeconds, err = t.float(i, "duration_seconds", true); err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// LoadCompanies 读取公司行程量(result_01)
func LoadCompanies(path, sheet string) ([]model.Company, error) {
	t, err := load(path, sheet, CompanyColumns)
	if err != nil {
		return nil, err
	}
	out := make([]model.Company, 0, t.len())
	for i := 0; i < t.len(); i++ {
		amount, err := t.float(i, "trips_amount", true)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Company{CompanyName: t.str(i, "company_name"), TripsAmount: amount})
	}
	return out, nil
}

// LoadNeighborhoods 读取区域平均下客量(result_04)
func LoadNeighborhoods(path, sheet string) ([]model.Neighborhood, error) {
	t, err := load(path, sheet, NeighborhoodColumns)
	if err != nil {
		return nil, err
	}
	out := make([]model.Neighborhood, 0, t.len())
	for i := 0; i < t.len(); i++ {
		avg, err := t.float(i, "average_trips", true)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Neighborhood{DropoffLocationName: t.str(i, "dropoff_location_name"), AverageTrips: avg})
	}
	return out, nil
}
