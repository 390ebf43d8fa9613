package processor

import (
	"fmt"
	"sort"
	"time"

	"TaxiAnalysis/src/datasource/file"
	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/utils"
)

// onRoute 判断行程是否为 Loop -> O'Hare
func onRoute(t model.Trip) bool {
	return t.PickupLocationID == model.LoopLocationID && t.DropoffLocationID == model.OHareLocationID
}

func isSaturday(ts time.Time) bool {
	return ts.Weekday() == time.Saturday
}

// JoinTrips 过滤线路与周六行程，并按整点与天气标签做内连接。
// 结果按 trip_id 升序。
func JoinTrips(trips []model.Trip, weather []model.WeatherRecord) ([]model.JoinedObservation, model.JoinStats) {
	labels, dupes := LabelHours(weather)
	return JoinLabeled(trips, labels, dupes)
}

// JoinLabeled 与已分类的整点天气标签做关联，dupes 仅用于统计
func JoinLabeled(trips []model.Trip, labels map[time.Time]model.WeatherLabel, dupes int) ([]model.JoinedObservation, model.JoinStats) {
	stats := model.JoinStats{TotalTrips: len(trips), DuplicateHours: dupes}

	var out []model.JoinedObservation
	for _, t := range trips {
		if !onRoute(t) {
			continue
		}
		stats.RouteMatched++

		if !isSaturday(t.StartTS) {
			continue
		}
		stats.SaturdayMatched++

		hour := utils.TruncateHour(t.StartTS)
		label, ok := labels[hour]
		if !ok {
			stats.DroppedNoWeather++
			continue
		}
		out = append(out, model.JoinedObservation{
			TripID:            t.TripID,
			StartTS:           hour,
			WeatherConditions: label,
			DurationSeconds:   t.DurationSeconds,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TripID < out[j].TripID
	})
	stats.Joined = len(out)
	return out, stats
}

// FromExtract 将 SQL 预过滤结果转换为观测值。
// 抽取文件已按 trip_id 排序，行号作为 TripID。
func FromExtract(rows []file.ExtractRow) ([]model.JoinedObservation, model.JoinStats, error) {
	stats := model.JoinStats{TotalTrips: len(rows), RouteMatched: len(rows)}
	var out []model.JoinedObservation
	for i, r := range rows {
		if !isSaturday(r.StartTS) {
			continue
		}
		stats.SaturdayMatched++

		label, ok := model.ParseWeatherLabel(r.WeatherConditions)
		if !ok {
			return nil, stats, &model.MalformedInputError{
				Source: "extract",
				Column: "weather_conditions",
				Row:    i + 1,
				Value:  r.WeatherConditions,
				Err:    fmt.Errorf("expected %q or %q", model.Bad, model.Good),
			}
		}
		out = append(out, model.JoinedObservation{
			TripID:            int64(i + 1),
			StartTS:           utils.TruncateHour(r.StartTS),
			WeatherConditions: label,
			DurationSeconds:   r.DurationSeconds,
		})
	}
	stats.Joined = len(out)
	return out, stats, nil
}
