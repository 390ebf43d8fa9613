package report

import (
	"fmt"
	"math"

	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/utils"

	"github.com/xuri/excelize/v2"
)

// 工作表名称
const (
	SheetSummary       = "Summary"
	SheetObservations  = "Observations"
	SheetCompanies     = "Companies"
	SheetNeighborhoods = "Neighborhoods"
)

// NaN/Inf 写成空单元格
func cellValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}

func summaryCells(label string, s model.Summary) []any {
	return []any{
		label, s.Count, cellValue(s.Mean), cellValue(s.Std), cellValue(s.Min),
		cellValue(s.Q1), cellValue(s.Q2), cellValue(s.Q3), cellValue(s.Max),
	}
}

// WriteWorkbook 生成 Excel 报告
func WriteWorkbook(path string, rep Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetObservations, SheetCompanies, SheetNeighborhoods} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("创建工作表 %s 失败: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return err
	}

	steps := []func(*excelize.File, Report, int) error{
		writeSummary, writeObservations, writeCompanies, writeNeighborhoods,
	}
	for _, step := range steps {
		if err := step(f, rep, headerStyle); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, rep Report, headerStyle int) error {
	res := rep.Result
	rows := [][]any{
		{"weather_conditions", "count", "mean", "std", "min", "25%", "50%", "75%", "max"},
		summaryCells(string(model.Bad), res.BadSummary),
		summaryCells(string(model.Good), res.GoodSummary),
		{},
		{"test", TestName(res)},
		{"t_statistic", cellValue(res.TStatistic)},
		{"df", cellValue(res.DF)},
		{"p_value", cellValue(res.PValue)},
		{"alpha", res.Alpha},
		{"levene_stat", cellValue(res.LeveneStat)},
		{"levene_p", cellValue(res.LeveneP)},
		{"reject_null", res.RejectNull},
		{"conclusion", Conclusion(res)},
		{},
		{"source", rep.Source},
		{"generated_at", utils.FormatTimestamp(rep.GeneratedAt)},
		{"total_trips", rep.Stats.TotalTrips},
		{"route_matched", rep.Stats.RouteMatched},
		{"saturday_matched", rep.Stats.SaturdayMatched},
		{"dropped_no_weather", rep.Stats.DroppedNoWeather},
		{"duplicate_hours", rep.Stats.DuplicateHours},
		{"joined", rep.Stats.Joined},
	}
	if rep.CrossCheck != "" {
		rows = append(rows, []any{"sql_crosscheck", rep.CrossCheck})
	}
	if err := writeRows(f, SheetSummary, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "I1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetSummary, "A", "A", 20); err != nil {
		return err
	}

	// 两类天气下的平均时长
	return f.AddChart(SheetSummary, "K2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$C$1", SheetSummary),
			Categories: fmt.Sprintf("%s!$A$2:$A$3", SheetSummary),
			Values:     fmt.Sprintf("%s!$C$2:$C$3", SheetSummary),
		}},
		Title:    []excelize.RichTextRun{{Text: "Mean duration (s) by weather"}},
		Legend:   excelize.ChartLegend{Position: "none"},
		PlotArea: excelize.ChartPlotArea{ShowVal: true},
	})
}

func writeObservations(f *excelize.File, rep Report, headerStyle int) error {
	rows := make([][]any, 0, len(rep.Observations)+1)
	rows = append(rows, []any{"trip_id", "start_ts", "weather_conditions", "duration_seconds"})
	for _, o := range rep.Observations {
		rows = append(rows, []any{o.TripID, utils.FormatTimestamp(o.StartTS), string(o.WeatherConditions), o.DurationSeconds})
	}
	if err := writeRows(f, SheetObservations, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetObservations, "B", "C", 20); err != nil {
		return err
	}
	return f.SetCellStyle(SheetObservations, "A1", "D1", headerStyle)
}

func writeCompanies(f *excelize.File, rep Report, headerStyle int) error {
	rows := [][]any{{"company_name", "trips_amount"}}
	for _, c := range rep.Companies {
		rows = append(rows, []any{c.CompanyName, c.TripsAmount})
	}
	return writeRanking(f, SheetCompanies, rows, headerStyle, "Top taxi companies by trips")
}

func writeNeighborhoods(f *excelize.File, rep Report, headerStyle int) error {
	rows := [][]any{{"dropoff_location_name", "average_trips"}}
	for _, n := range rep.Neighborhoods {
		rows = append(rows, []any{n.DropoffLocationName, n.AverageTrips})
	}
	return writeRanking(f, SheetNeighborhoods, rows, headerStyle, "Top dropoff neighborhoods by average trips")
}

// writeRanking 写入两列排行表，有数据时附条形图
func writeRanking(f *excelize.File, sheet string, rows [][]any, headerStyle int, title string) error {
	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "A", 36); err != nil {
		return err
	}
	n := len(rows) - 1
	if n == 0 {
		return nil
	}
	return f.AddChart(sheet, "D2", &excelize.Chart{
		Type: excelize.Bar,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", sheet),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheet, n+1),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", sheet, n+1),
		}},
		Title:  []excelize.RichTextRun{{Text: title}},
		Legend: excelize.ChartLegend{Position: "none"},
		YAxis:  excelize.ChartAxis{MajorGridLines: true},
		XAxis:  excelize.ChartAxis{ReverseOrder: true},
		Dimension: excelize.ChartDimension{
			Width:  640,
			Height: 400,
		},
	})
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("写入 %s 第 %d 行失败: %w", sheet, i+1, err)
		}
	}
	return nil
}
