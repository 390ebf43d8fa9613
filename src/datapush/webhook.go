package datapush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/storage"
)

// 常量定义
const (
	RETRY_TIMES    = 3
	RETRY_INTERVAL = 2 * time.Second
)

// WebhookResponse 接收方可选返回的结构，errcode 非 0 视为失败
type WebhookResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Summary 描述统计，NaN 以 null 表示
type Summary struct {
	Count int      `json:"count"`
	Mean  *float64 `json:"mean"`
	Std   *float64 `json:"std"`
	Min   *float64 `json:"min"`
	Q1    *float64 `json:"q1"`
	Q2    *float64 `json:"median"`
	Q3    *float64 `json:"q3"`
	Max   *float64 `json:"max"`
}

// Payload 推送内容
type Payload struct {
	GeneratedAt string          `json:"generated_at"`
	Source      string          `json:"source"`
	Stats       model.JoinStats `json:"stats"`
	TStatistic  *float64        `json:"t_statistic"`
	PValue      *float64        `json:"p_value"`
	DF          *float64        `json:"df"`
	Alpha       float64         `json:"alpha"`
	RejectNull  bool            `json:"reject_null"`
	EqualVar    bool            `json:"equal_var"`
	LeveneStat  *float64        `json:"levene_stat"`
	LeveneP     *float64        `json:"levene_p"`
	Bad         Summary         `json:"bad"`
	Good        Summary         `json:"good"`
	Conclusion  string          `json:"conclusion"`
}

func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func summary(s model.Summary) Summary {
	return Summary{
		Count: s.Count, Mean: number(s.Mean), Std: number(s.Std), Min: number(s.Min),
		Q1: number(s.Q1), Q2: number(s.Q2), Q3: number(s.Q3), Max: number(s.Max),
	}
}

// NewPayload 由检验结果构造推送内容
func NewPayload(generatedAt time.Time, source string, stats model.JoinStats, res model.TestResult, conclusion string) Payload {
	return Payload{
		GeneratedAt: generatedAt.Format("2006-01-02 15:04:05"),
		Source:      source,
		Stats:       stats,
		TStatistic:  number(res.TStatistic),
		PValue:      number(res.PValue),
		DF:          number(res.DF),
		Alpha:       res.Alpha,
		RejectNull:  res.RejectNull,
		EqualVar:    res.EqualVar,
		LeveneStat:  number(res.LeveneStat),
		LeveneP:     number(res.LeveneP),
		Bad:         summary(res.BadSummary),
		Good:        summary(res.GoodSummary),
		Conclusion:  conclusion,
	}
}

// Pusher 将检验结果 POST 到 webhook
type Pusher struct {
	url      string
	client   *http.Client
	logger   *storage.Logger
	times    int
	interval time.Duration
}

func NewPusher(url string, timeout time.Duration, logger *storage.Logger) *Pusher {
	return &Pusher{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		times:    RETRY_TIMES,
		interval: RETRY_INTERVAL,
	}
}

// SetRetry 调整重试次数与间隔
func (p *Pusher) SetRetry(times int, interval time.Duration) {
	p.times, p.interval = times, interval
}

// Push 推送，失败按固定间隔重试
func (p *Pusher) Push(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化推送内容失败: %w", err)
	}
	attempt := 0
	return retry(ctx, func() error {
		attempt++
		err := p.post(ctx, body)
		if err != nil {
			p.logger.Warningf("webhook 推送失败(第 %d 次): %v", attempt, err)
		}
		return err
	}, p.times, p.interval)
}

func (p *Pusher) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook 返回状态 %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	// 空响应或非 JSON 响应视为成功
	var result WebhookResponse
	if len(respBody) > 0 && json.Unmarshal(respBody, &result) == nil && result.ErrCode != 0 {
		return fmt.Errorf("webhook 错误: %s", result.ErrMsg)
	}
	return nil
}

// 重试函数
func retry(ctx context.Context, fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}
