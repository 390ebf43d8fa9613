// Package db 从 PostgreSQL 源库导出分析用的数据集
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"TaxiAnalysis/src/config"
	"TaxiAnalysis/src/datasource/file"
	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/storage"
	"TaxiAnalysis/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tripsQuery = `
	SELECT trip_id, cab_id, start_ts, end_ts, duration_seconds, distance_miles,
		   pickup_location_id, dropoff_location_id
	FROM trips
	ORDER BY trip_id
`

const weatherQuery = `
	SELECT record_id, ts, temperature, description
	FROM weather_records
	ORDER BY record_id
`

// 同一小时取 record_id 最小的天气记录
const extractQuery = `
	SELECT t.start_ts,
		   CASE
			   WHEN lower(w.description) LIKE '%rain%' OR lower(w.description) LIKE '%storm%' THEN 'Bad'
			   ELSE 'Good'
		   END AS weather_conditions,
		   t.duration_seconds
	FROM trips t
	JOIN (
		SELECT DISTINCT ON (date_trunc('hour', ts)) date_trunc('hour', ts) AS hour, description
		FROM weather_records
		ORDER BY date_trunc('hour', ts), record_id
	) w ON w.hour = date_trunc('hour', t.start_ts)
	WHERE t.pickup_location_id = $1
	  AND t.dropoff_location_id = $2
	  AND EXTRACT(DOW FROM t.start_ts) = 6
	ORDER BY t.trip_id
`

const companiesQuery = `
	SELECT c.company_name, COUNT(t.trip_id) AS trips_amount
	FROM cabs c
	JOIN trips t ON t.cab_id = c.cab_id
	WHERE CAST(t.start_ts AS date) BETWEEN '2017-11-15' AND '2017-11-16'
	GROUP BY c.company_name
	ORDER BY trips_amount DESC
`

const neighborhoodsQuery = `
	SELECT n.name AS dropoff_location_name,
		   COUNT(t.trip_id)::float8 / 30 AS average_trips
	FROM trips t
	JOIN neighborhoods n ON n.neighborhood_id = t.dropoff_location_id
	WHERE t.start_ts >= '2017-11-01' AND t.start_ts < '2017-12-01'
	GROUP BY n.name
	ORDER BY average_trips DESC
`

// Export 一个导出项
type Export struct {
	Dataset string
	Query   string
	Args    []any
	Columns []string
}

// Exports 按数据集列出全部导出项
func Exports() []Export {
	return []Export{
		{Dataset: config.DatasetTrips, Query: tripsQuery, Columns: file.TripColumns},
		{Dataset: config.DatasetWeather, Query: weatherQuery, Columns: file.WeatherColumns},
		{Dataset: config.DatasetExtract, Query: extractQuery, Args: []any{model.LoopLocationID, model.OHareLocationID}, Columns: file.ExtractColumns},
		{Dataset: config.DatasetCompanies, Query: companiesQuery, Columns: file.CompanyColumns},
		{Dataset: config.DatasetNeighborhoods, Query: neighborhoodsQuery, Columns: file.NeighborhoodColumns},
	}
}

// Exporter 负责查询源库并写出 CSV
type Exporter struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *storage.Logger
}

// NewExporter 连接源库
func NewExporter(ctx context.Context, dsn string, timeout time.Duration, logger *storage.Logger) (*Exporter, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: empty dsn")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}
	return &Exporter{pool: pool, timeout: timeout, logger: logger}, nil
}

func (e *Exporter) Close() {
	e.pool.Close()
}

// ExportAll 依次导出所有数据集到 dataDir，返回写出的文件路径
func (e *Exporter) ExportAll(ctx context.Context, dataDir string, dcfg *config.DataConfig) ([]string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, ex := range Exports() {
		name := dcfg.GetFile(ex.Dataset)
		if name == "" {
			continue
		}
		path := filepath.Join(dataDir, name)
		n, err := e.export(ctx, ex, path)
		if err != nil {
			return written, fmt.Errorf("postgres: export %s: %w", ex.Dataset, err)
		}
		e.logger.Infof("导出 %s: %d 行 -> %s", ex.Dataset, n, path)
		written = append(written, path)
	}
	return written, nil
}

func (e *Exporter) export(ctx context.Context, ex Export, path string) (int, error) {
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.pool.Query(qctx, ex.Query, ex.Args...)
	if err != nil {
		return 0, err
	}
	records, err := collectRecords(rows)
	if err != nil {
		return 0, err
	}
	return len(records), WriteRecords(path, ex.Columns, records)
}

func collectRecords(rows pgx.Rows) ([][]string, error) {
	defer rows.Close()
	var records [][]string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = FormatValue(v)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// WriteRecords 通过 gota 写出带表头的 CSV，所有列按字符串保存
func WriteRecords(path string, header []string, records [][]string) error {
	if len(records) == 0 {
		return fmt.Errorf("no rows to write for %s", filepath.Base(path))
	}
	all := make([][]string, 0, len(records)+1)
	all = append(all, header)
	all = append(all, records...)
	df := dataframe.LoadRecords(all, dataframe.DetectTypes(false), dataframe.HasHeader(true))
	if df.Err != nil {
		return df.Err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return df.WriteCSV(f)
}

// FormatValue 将数据库值转换为 CSV 文本，时间统一为 "2006-01-02 15:04:05"
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return utils.FormatTimestamp(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
