package processor

import (
	"fmt"

	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// TopN 默认排行数量
const TopN = 10

// CompaniesFrame 公司行程量转 DataFrame
func CompaniesFrame(companies []model.Company) dataframe.DataFrame {
	names := make([]string, len(companies))
	amounts := make([]float64, len(companies))
	for i, c := range companies {
		names[i], amounts[i] = c.CompanyName, c.TripsAmount
	}
	return dataframe.New(
		series.New(names, series.String, "company_name"),
		series.New(amounts, series.Float, "trips_amount"),
	)
}

// NeighborhoodsFrame 区域平均下客量转 DataFrame
func NeighborhoodsFrame(hoods []model.Neighborhood) dataframe.DataFrame {
	names := make([]string, len(hoods))
	avgs := make([]float64, len(hoods))
	for i, h := range hoods {
		names[i], avgs[i] = h.DropoffLocationName, h.AverageTrips
	}
	return dataframe.New(
		series.New(names, series.String, "dropoff_location_name"),
		series.New(avgs, series.Float, "average_trips"),
	)
}

// ObservationsFrame 关联观测值转 DataFrame，用于导出
func ObservationsFrame(obs []model.JoinedObservation) dataframe.DataFrame {
	ids := make([]int, len(obs))
	starts := make([]string, len(obs))
	labels := make([]string, len(obs))
	durations := make([]float64, len(obs))
	for i, o := range obs {
		ids[i] = int(o.TripID)
		starts[i] = utils.FormatTimestamp(o.StartTS)
		labels[i] = string(o.WeatherConditions)
		durations[i] = o.DurationSeconds
	}
	return dataframe.New(
		series.New(ids, series.Int, "trip_id"),
		series.New(starts, series.String, "start_ts"),
		series.New(labels, series.String, "weather_conditions"),
		series.New(durations, series.Float, "duration_seconds"),
	)
}

// topRows 按 col 降序取前 n 行
func topRows(df dataframe.DataFrame, col string, n int) (dataframe.DataFrame, error) {
	if df.Nrow() == 0 {
		return df, nil
	}
	sorted := df.Arrange(dataframe.RevSort(col))
	if sorted.Err != nil {
		return df, fmt.Errorf("排序 %s 失败: %w", col, sorted.Err)
	}
	if sorted.Nrow() <= n {
		return sorted, nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	top := sorted.Subset(idx)
	if top.Err != nil {
		return df, top.Err
	}
	return top, nil
}

// TopCompanies 行程量最多的前 n 家公司
func TopCompanies(companies []model.Company, n int) ([]model.Company, error) {
	top, err := topRows(CompaniesFrame(companies), "trips_amount", n)
	if err != nil {
		return nil, err
	}
	names := top.Col("company_name").Records()
	amounts := top.Col("trips_amount").Float()
	out := make([]model.Company, len(names))
	for i := range names {
		out[i] = model.Company{CompanyName: names[i], TripsAmount: amounts[i]}
	}
	return out, nil
}

// TopNeighborhoods 平均下客量最高的前 n 个区域
func TopNeighborhoods(hoods []model.Neighborhood, n int) ([]model.Neighborhood, error) {
	top, err := topRows(NeighborhoodsFrame(hoods), "average_trips", n)
	if err != nil {
		return nil, err
	}
	names := top.Col("dropoff_location_name").Records()
	avgs := top.Col("average_trips").Float()
	out := make([]model.Neighborhood, len(names))
	for i := range names {
		out[i] = model.Neighborhood{DropoffLocationName: names[i], AverageTrips: avgs[i]}
	}
	return out, nil
}
