// Package report 输出检验结果: 终端摘要、Excel 工作簿与观测值 CSV
package report

import (
	"fmt"
	"math"
	"os"
	"time"

	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/processor"
)

// Report 一次运行的全部输出内容
type Report struct {
	GeneratedAt   time.Time
	Source        string // 观测值来源: raw 或 extract
	Stats         model.JoinStats
	Result        model.TestResult
	Observations  []model.JoinedObservation
	Companies     []model.Company      // 前 10，可为空
	Neighborhoods []model.Neighborhood // 前 10，可为空
	CrossCheck    string               // SQL 复核摘要，未启用时为空
}

// Conclusion 检验结论文本
func Conclusion(r model.TestResult) string {
	if r.RejectNull {
		return fmt.Sprintf("Reject H0: mean Loop -> O'Hare Saturday duration differs between Bad and Good weather (p=%s < alpha=%.2f)",
			formatP(r.PValue), r.Alpha)
	}
	return fmt.Sprintf("Fail to reject H0: no significant difference in mean duration between Bad and Good weather (p=%s >= alpha=%.2f)",
		formatP(r.PValue), r.Alpha)
}

// TestName 所用检验的名称
func TestName(r model.TestResult) string {
	if r.EqualVar {
		return "Student t-test (pooled variance)"
	}
	return "Welch t-test (unequal variance)"
}

func formatP(p float64) string {
	if p < 1e-4 {
		return fmt.Sprintf("%.3e", p)
	}
	return fmt.Sprintf("%.4f", p)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

// WriteObservationsCSV 导出参与检验的观测值
func WriteObservationsCSV(path string, obs []model.JoinedObservation) error {
	df := processor.ObservationsFrame(obs)
	if df.Err != nil {
		return df.Err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 %s 失败: %w", path, err)
	}
	defer f.Close()
	return df.WriteCSV(f)
}
