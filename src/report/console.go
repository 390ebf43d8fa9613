package report

import (
	"fmt"
	"io"
	"strconv"

	"TaxiAnalysis/src/model"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorPrimary = lipgloss.Color("#00BFFF")
	colorDanger  = lipgloss.Color("#FF6B6B")
	colorSuccess = lipgloss.Color("#6BCF7F")
	colorMuted   = lipgloss.Color("#6C757D")
	colorBorder  = lipgloss.Color("#4A90E2")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func summaryRow(label string, s model.Summary) []string {
	return []string{
		label, strconv.Itoa(s.Count), formatFloat(s.Mean), formatFloat(s.Std),
		formatFloat(s.Min), formatFloat(s.Q1), formatFloat(s.Q2), formatFloat(s.Q3), formatFloat(s.Max),
	}
}

// Render 生成终端摘要
func Render(rep Report) string {
	res := rep.Result
	var sections []string

	sections = append(sections, titleStyle.Render("Loop -> O'Hare Saturday trip duration vs weather"))
	sections = append(sections, mutedStyle.Render(fmt.Sprintf("generated %s  source %s",
		rep.GeneratedAt.Format("2006-01-02 15:04:05"), rep.Source)))

	st := rep.Stats
	sections = append(sections, fmt.Sprintf(
		"trips %d  route %d  saturday %d  no weather %d  duplicate hours %d  joined %d",
		st.TotalTrips, st.RouteMatched, st.SaturdayMatched, st.DroppedNoWeather, st.DuplicateHours, st.Joined))

	durations := newTable("weather", "count", "mean", "std", "min", "25%", "50%", "75%", "max").
		Row(summaryRow(string(model.Bad), res.BadSummary)...).
		Row(summaryRow(string(model.Good), res.GoodSummary)...)
	sections = append(sections, durations.Render())

	stats := newTable("statistic", "value").
		Row("test", TestName(res)).
		Row("t", formatFloat(res.TStatistic)).
		Row("df", formatFloat(res.DF)).
		Row("p-value", formatP(res.PValue)).
		Row("levene W", formatFloat(res.LeveneStat)).
		Row("levene p", formatFloat(res.LeveneP))
	sections = append(sections, stats.Render())

	verdict := lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	if res.RejectNull {
		verdict = verdict.Foreground(colorDanger)
	}
	sections = append(sections, verdict.Render(Conclusion(res)))

	if rep.CrossCheck != "" {
		sections = append(sections, mutedStyle.Render("sql cross-check: "+rep.CrossCheck))
	}

	if len(rep.Companies) > 0 {
		t := newTable("company", "trips")
		for _, c := range rep.Companies {
			t.Row(c.CompanyName, strconv.FormatFloat(c.TripsAmount, 'f', -1, 64))
		}
		sections = append(sections, titleStyle.Render("Top taxi companies"), t.Render())
	}
	if len(rep.Neighborhoods) > 0 {
		t := newTable("neighborhood", "avg dropoffs")
		for _, n := range rep.Neighborhoods {
			t.Row(n.DropoffLocationName, formatFloat(n.AverageTrips))
		}
		sections = append(sections, titleStyle.Render("Top dropoff neighborhoods"), t.Render())
	}

	return paneStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// Print 输出终端摘要
func Print(w io.Writer, rep Report) error {
	_, err := fmt.Fprintln(w, Render(rep))
	return err
}
