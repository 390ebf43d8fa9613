package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 支持的时间格式
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006-01-02",
}

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// MissingColumns 返回 df 中缺失的列名
func MissingColumns(df dataframe.DataFrame, required []string) []string {
	var missing []string
	names := df.Names()
	for _, col := range required {
		if !Contains(names, col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// ParseTimestamp 按多种格式解析时间，结果统一为不带时区的UTC时间
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if layout == time.RFC3339 {
				// 保留墙上时间，丢弃时区
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
			}
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format %q", s)
}

func ParseTime(s series.Element) (time.Time, error) {
	if s.IsNA() {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	return ParseTimestamp(s.String())
}

// TruncateHour 截断到整点
func TruncateHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// FormatTimestamp 统一的输出格式
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
