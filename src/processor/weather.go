package processor

import (
	"sort"
	"strings"
	"time"

	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/utils"
)

// 恶劣天气关键词(小写子串匹配)
var badWeatherKeywords = []string{"rain", "storm"}

// Classify 根据天气描述判断天气标签
func Classify(description string) model.WeatherLabel {
	lower := strings.ToLower(description)
	for _, kw := range badWeatherKeywords {
		if strings.Contains(lower, kw) {
			return model.Bad
		}
	}
	return model.Good
}

// LabelHours 为每个整点生成唯一的天气标签。
// 同一小时有多条记录时取 record_id 最小的一条，dupes 返回被忽略的记录数。
func LabelHours(records []model.WeatherRecord) (labels map[time.Time]model.WeatherLabel, dupes int) {
	sorted := make([]model.WeatherRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecordID < sorted[j].RecordID
	})

	labels = make(map[time.Time]model.WeatherLabel, len(sorted))
	for _, r := range sorted {
		hour := utils.TruncateHour(r.TS)
		if _, ok := labels[hour]; ok {
			dupes++
			continue
		}
		labels[hour] = Classify(r.Description)
	}
	return labels, dupes
}
