package model

import (
	"strings"
	"time"
)

// 固定线路与显著性水平
const (
	LoopLocationID  = 50   // Loop 区域编号(上客点)
	OHareLocationID = 63   // O'Hare 机场区域编号(下客点)
	Alpha           = 0.05 // 显著性水平
)

// WeatherLabel 天气标签
type WeatherLabel string

const (
	Bad  WeatherLabel = "Bad"  // 雨天/暴风雨
	Good WeatherLabel = "Good" // 其他天气
)

// ParseWeatherLabel 解析抽取文件中的 weather_conditions 字段(不区分大小写)
func ParseWeatherLabel(s string) (WeatherLabel, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, string(Bad)):
		return Bad, true
	case strings.EqualFold(s, string(Good)):
		return Good, true
	}
	return "", false
}

// Trip 出租车行程
type Trip struct {
	TripID            int64     // 行程唯一编号
	CabID             string    // 车辆编号
	StartTS           time.Time // 开始时间(已截断到小时)
	EndTS             time.Time // 结束时间
	DurationSeconds   float64   // 时长(秒)
	DistanceMiles     float64   // 距离(英里)
	PickupLocationID  int       // 上客区域
	DropoffLocationID int       // 下客区域
}

// WeatherRecord 每小时天气记录
type WeatherRecord struct {
	RecordID    int64
	TS          time.Time
	Temperature float64
	Description string
}

// JoinedObservation 关联后的观测值，每个符合条件的行程一行
type JoinedObservation struct {
	TripID            int64
	StartTS           time.Time
	WeatherConditions WeatherLabel
	DurationSeconds   float64
}

// JoinStats 关联过程的审计计数
type JoinStats struct {
	TotalTrips       int `json:"total_trips"`        // 输入行程数
	RouteMatched     int `json:"route_matched"`      // 线路匹配(50 -> 63)的行程数
	SaturdayMatched  int `json:"saturday_matched"`   // 线路匹配且为周六的行程数
	DroppedNoWeather int `json:"dropped_no_weather"` // 找不到对应天气小时而被丢弃的行程数
	DuplicateHours   int `json:"duplicate_hours"`    // 同一小时存在多条天气记录的次数
	Joined           int `json:"joined"`             // 最终输出的观测数
}

// Summary 单个样本的描述统计
type Summary struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Q1    float64
	Q2    float64
	Q3    float64
	Max   float64
}

// TestResult 假设检验结果
type TestResult struct {
	TStatistic  float64 `json:"t_statistic"`
	PValue      float64 `json:"p_value"`
	DF          float64 `json:"df"`
	Alpha       float64 `json:"alpha"`
	RejectNull  bool    `json:"reject_null"`
	EqualVar    bool    `json:"equal_var"`    // true: Student, false: Welch
	LeveneStat  float64 `json:"levene_stat"`  // Brown-Forsythe 统计量
	LeveneP     float64 `json:"levene_p"`     // Levene 检验 p 值
	BadSummary  Summary `json:"bad_summary"`  // 雨天样本
	GoodSummary Summary `json:"good_summary"` // 非雨天样本
}

// Company 出租车公司行程量 (SQL 结果 01)
type Company struct {
	CompanyName string
	TripsAmount float64
}

// Neighborhood 下客区域平均完成量 (SQL 结果 04)
type Neighborhood struct {
	DropoffLocationName string
	AverageTrips        float64
}
