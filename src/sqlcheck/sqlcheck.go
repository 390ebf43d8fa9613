// Package sqlcheck 在内存 SQLite 中重放抽取 SQL，用于复核流水线的关联结果
package sqlcheck

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/utils"

	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE trips (
		trip_id INTEGER PRIMARY KEY,
		cab_id TEXT,
		start_ts TEXT NOT NULL,
		end_ts TEXT,
		duration_seconds REAL NOT NULL,
		distance_miles REAL,
		pickup_location_id INTEGER NOT NULL,
		dropoff_location_id INTEGER NOT NULL
	);
	CREATE TABLE weather_records (
		record_id INTEGER PRIMARY KEY,
		ts TEXT NOT NULL,
		temperature REAL,
		description TEXT
	);
	CREATE INDEX idx_weather_ts ON weather_records(ts);
`

// ExtractQuery 与源库导出 SQL 等价的 SQLite 方言版本。
// 同一小时多条天气记录时取 record_id 最小的一条。
const ExtractQuery = `
	SELECT
		t.trip_id,
		t.start_ts,
		CASE
			WHEN lower(w.description) LIKE '%rain%' OR lower(w.description) LIKE '%storm%' THEN 'Bad'
			ELSE 'Good'
		END AS weather_conditions,
		t.duration_seconds
	FROM trips t
	JOIN (
		SELECT strftime('%Y-%m-%d %H:00:00', w1.ts) AS hour, w1.description
		FROM weather_records w1
		WHERE w1.record_id = (
			SELECT MIN(w2.record_id) FROM weather_records w2
			WHERE strftime('%Y-%m-%d %H:00:00', w2.ts) = strftime('%Y-%m-%d %H:00:00', w1.ts)
		)
	) w ON w.hour = strftime('%Y-%m-%d %H:00:00', t.start_ts)
	WHERE t.pickup_location_id = ?
	  AND t.dropoff_location_id = ?
	  AND strftime('%w', t.start_ts) = '6'
	ORDER BY t.trip_id
`

// Report 复核结果
type Report struct {
	SQLRows    int
	GoRows     int
	Mismatches []string
}

// OK 两边结果完全一致
func (r Report) OK() bool {
	return r.SQLRows == r.GoRows && len(r.Mismatches) == 0
}

// Open 打开内存数据库。单连接，保证所有语句落在同一个内存库上。
func Open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

// Load 写入行程和天气数据
func Load(ctx context.Context, db *sql.DB, trips []model.Trip, weather []model.WeatherRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tripStmt, err := tx.PrepareContext(ctx, `INSERT INTO trips VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing trip insert: %w", err)
	}
	defer tripStmt.Close()
	for _, t := range trips {
		if _, err := tripStmt.ExecContext(ctx,
			t.TripID, t.CabID, utils.FormatTimestamp(t.StartTS), utils.FormatTimestamp(t.EndTS),
			t.DurationSeconds, t.DistanceMiles, t.PickupLocationID, t.DropoffLocationID,
		); err != nil {
			return fmt.Errorf("inserting trip %d: %w", t.TripID, err)
		}
	}

	weatherStmt, err := tx.PrepareContext(ctx, `INSERT INTO weather_records VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing weather insert: %w", err)
	}
	defer weatherStmt.Close()
	for _, w := range weather {
		if _, err := weatherStmt.ExecContext(ctx,
			w.RecordID, utils.FormatTimestamp(w.TS), w.Temperature, w.Description,
		); err != nil {
			return fmt.Errorf("inserting weather record %d: %w", w.RecordID, err)
		}
	}

	return tx.Commit()
}

type sqlRow struct {
	label    string
	duration float64
}

// Query 执行抽取 SQL，返回 trip_id 有序的结果
func Query(ctx context.Context, db *sql.DB) ([]int64, map[int64]sqlRow, error) {
	rows, err := db.QueryContext(ctx, ExtractQuery, model.LoopLocationID, model.OHareLocationID)
	if err != nil {
		return nil, nil, fmt.Errorf("querying extract: %w", err)
	}
	defer rows.Close()

	var order []int64
	result := make(map[int64]sqlRow)
	for rows.Next() {
		var (
			id      int64
			startTS string
			r       sqlRow
		)
		if err := rows.Scan(&id, &startTS, &r.label, &r.duration); err != nil {
			return nil, nil, fmt.Errorf("scanning row: %w", err)
		}
		order = append(order, id)
		result[id] = r
	}
	return order, result, rows.Err()
}

// CrossCheck 对比 SQL 结果与 Go 关联结果
func CrossCheck(ctx context.Context, trips []model.Trip, weather []model.WeatherRecord, obs []model.JoinedObservation) (Report, error) {
	db, err := Open()
	if err != nil {
		return Report{}, err
	}
	defer db.Close()

	if err := Load(ctx, db, trips, weather); err != nil {
		return Report{}, err
	}
	order, rows, err := Query(ctx, db)
	if err != nil {
		return Report{}, err
	}

	report := Report{SQLRows: len(order), GoRows: len(obs)}
	seen := make(map[int64]bool, len(obs))
	for i, o := range obs {
		seen[o.TripID] = true
		r, ok := rows[o.TripID]
		if !ok {
			report.Mismatches = append(report.Mismatches, fmt.Sprintf("trip %d: missing from SQL result", o.TripID))
			continue
		}
		if r.label != string(o.WeatherConditions) {
			report.Mismatches = append(report.Mismatches, fmt.Sprintf("trip %d: label %s (sql) vs %s", o.TripID, r.label, o.WeatherConditions))
		}
		if math.Abs(r.duration-o.DurationSeconds) > 1e-9 {
			report.Mismatches = append(report.Mismatches, fmt.Sprintf("trip %d: duration %v (sql) vs %v", o.TripID, r.duration, o.DurationSeconds))
		}
		if i < len(order) && order[i] != o.TripID {
			report.Mismatches = append(report.Mismatches, fmt.Sprintf("row %d: trip %d (sql) vs %d", i+1, order[i], o.TripID))
		}
	}
	for _, id := range order {
		if !seen[id] {
			report.Mismatches = append(report.Mismatches, fmt.Sprintf("trip %d: missing from joined observations", id))
		}
	}
	return report, nil
}
