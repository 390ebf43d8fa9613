package processor

import (
	"fmt"
	"math"
	"sort"

	"TaxiAnalysis/src/model"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// VarianceMode 两样本 t 检验的方差假设
type VarianceMode string

const (
	VariancePooled VarianceMode = "pooled" // Student t 检验，合并方差
	VarianceWelch  VarianceMode = "welch"  // Welch t 检验
	VarianceAuto   VarianceMode = "auto"   // Levene p < Alpha 时使用 Welch
)

// Partition 按天气标签拆分时长样本，保持输入顺序
func Partition(obs []model.JoinedObservation) (bad, good []float64) {
	for _, o := range obs {
		switch o.WeatherConditions {
		case model.Bad:
			bad = append(bad, o.DurationSeconds)
		case model.Good:
			good = append(good, o.DurationSeconds)
		}
	}
	return bad, good
}

// TTest 独立双样本 t 检验(双侧)。
// 任一组样本数小于2返回 *model.InsufficientDataError。
func TTest(bad, good []float64, mode VarianceMode) (model.TestResult, error) {
	if len(bad) < 2 || len(good) < 2 {
		return model.TestResult{}, &model.InsufficientDataError{Bad: len(bad), Good: len(good)}
	}

	result := model.TestResult{
		Alpha:       model.Alpha,
		BadSummary:  Describe(bad),
		GoodSummary: Describe(good),
	}
	result.LeveneStat, result.LeveneP = Levene(bad, good)

	switch mode {
	case VariancePooled, "":
		result.EqualVar = true
	case VarianceWelch:
		result.EqualVar = false
	case VarianceAuto:
		// Levene 无定义(NaN)时按方差相等处理
		result.EqualVar = !(result.LeveneP < model.Alpha)
	default:
		return model.TestResult{}, fmt.Errorf("unknown variance mode %q", mode)
	}

	m1, v1 := stat.MeanVariance(bad, nil)
	m2, v2 := stat.MeanVariance(good, nil)
	if v1 == 0 && v2 == 0 {
		return model.TestResult{}, model.ErrZeroVariance
	}
	n1, n2 := float64(len(bad)), float64(len(good))

	var se2 float64
	if result.EqualVar {
		result.DF = n1 + n2 - 2
		pooled := ((n1-1)*v1 + (n2-1)*v2) / result.DF
		se2 = pooled * (1/n1 + 1/n2)
	} else {
		a, b := v1/n1, v2/n2
		se2 = a + b
		result.DF = se2 * se2 / (a*a/(n1-1) + b*b/(n2-1))
	}

	result.TStatistic = (m1 - m2) / math.Sqrt(se2)
	result.PValue = twoSidedP(result.TStatistic, result.DF)
	result.RejectNull = result.PValue < model.Alpha
	return result, nil
}

// twoSidedP 双侧 p 值，用下尾 CDF 计算以保留极小 p 值的精度
func twoSidedP(t, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))
	return math.Min(1, p)
}

// Levene Brown-Forsythe 形式(以中位数为中心)的方差齐性检验。
// 组内离差全为0时返回 NaN。
func Levene(samples ...[]float64) (statistic, p float64) {
	k := len(samples)
	if k < 2 {
		return math.NaN(), math.NaN()
	}

	var (
		n      int
		total  float64
		zs     = make([][]float64, k)
		zMeans = make([]float64, k)
	)
	for i, s := range samples {
		med := median(s)
		z := make([]float64, len(s))
		for j, x := range s {
			z[j] = math.Abs(x - med)
		}
		zs[i] = z
		zMeans[i] = stat.Mean(z, nil)
		total += floats.Sum(z)
		n += len(s)
	}
	grand := total / float64(n)

	var between, within float64
	for i, z := range zs {
		d := zMeans[i] - grand
		between += float64(len(z)) * d * d
		for _, v := range z {
			w := v - zMeans[i]
			within += w * w
		}
	}
	if within == 0 {
		return math.NaN(), math.NaN()
	}

	d1, d2 := float64(k-1), float64(n-k)
	statistic = (d2 / d1) * between / within
	p = distuv.F{D1: d1, D2: d2}.Survival(statistic)
	return statistic, p
}

// Describe 样本描述统计，分位数采用线性插值
func Describe(sample []float64) model.Summary {
	if len(sample) == 0 {
		return model.Summary{}
	}
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	mean, variance := stat.MeanVariance(sorted, nil)
	s := model.Summary{
		Count: len(sorted),
		Mean:  mean,
		Std:   math.Sqrt(variance),
		Min:   floats.Min(sorted),
		Q1:    quantile(sorted, 0.25),
		Q2:    quantile(sorted, 0.5),
		Q3:    quantile(sorted, 0.75),
		Max:   floats.Max(sorted),
	}
	if len(sorted) < 2 {
		s.Std = math.NaN()
	}
	return s
}

func median(s []float64) float64 {
	sorted := make([]float64, len(s))
	copy(sorted, s)
	sort.Float64s(sorted)
	return quantile(sorted, 0.5)
}

// quantile 对已排序数据做线性插值分位数(与 pandas describe 一致)
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
