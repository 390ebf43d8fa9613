package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// 环境变量覆盖项
const (
	EnvPostgresDSN  = "TAXI_PG_DSN"
	EnvMailPassword = "TAXI_MAIL_PASSWORD"
	EnvSMTPPassword = "TAXI_SMTP_PASSWORD"
	EnvWebhookURL   = "TAXI_WEBHOOK_URL"
)

// t 检验方差模式
const (
	VariancePooled = "pooled" // Student t 检验(默认)
	VarianceWelch  = "welch"  // Welch t 检验
	VarianceAuto   = "auto"   // 由 Levene 检验决定
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Email struct {
		Server        string   `json:"server"`         // IMAP服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	SendEmail struct {
		Server   string   `json:"server"`   // SMTP服务器地址
		Username string   `json:"username"` // 发件人
		Password string   `json:"password"`
		To       []string `json:"to"`      // 收件人
		Subject  string   `json:"subject"` // 报告邮件主题
	} `json:"send_email"`

	Database struct {
		DSN     string   `json:"dsn"`     // PostgreSQL 连接串，导出源数据用
		Timeout Duration `json:"timeout"` // 查询超时
	} `json:"database"`

	Webhook struct {
		URL     string   `json:"url"`
		Timeout Duration `json:"timeout"`
	} `json:"webhook"`

	DataDir    string `json:"data_dir"`    // 输入数据目录
	OutputDir  string `json:"output_dir"`  // 报告输出目录
	LogName    string `json:"log_name"`    // 日志文件
	LogMaxSize string `json:"log_max_size"` // 例如 "10 * 1024 * 1024"
	Schedule   string `json:"schedule"`    // cron 表达式，空则只运行一次
	Watch      bool   `json:"watch"`       // 监控输入目录变化
	Variance   string `json:"ttest_variance"`
	CrossCheck bool   `json:"crosscheck"` // 使用 SQLite 复核关联结果
}

// DataConfig 数据集文件配置
type DataConfig struct {
	Files  map[string]string `json:"files"`  // 数据集 -> 文件名
	Sheets map[string]string `json:"sheets"` // 数据集 -> xlsx 工作表名
}

// 数据集名称
const (
	DatasetTrips         = "trips"
	DatasetWeather       = "weather"
	DatasetExtract       = "extract"
	DatasetCompanies     = "companies"
	DatasetNeighborhoods = "neighborhoods"
)

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.applyDefaults()
	dcfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.OutputDir == "" {
		c.OutputDir = "./output"
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = "10 * 1024 * 1024"
	}
	if c.Variance == "" {
		c.Variance = VariancePooled
	}
	if c.Database.Timeout == 0 {
		c.Database.Timeout = Duration(30 * time.Second)
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = Duration(10 * time.Second)
	}
}

func (dc *DataConfig) applyDefaults() {
	defaults := DefaultDataConfig()
	if dc.Files == nil {
		dc.Files = map[string]string{}
	}
	if dc.Sheets == nil {
		dc.Sheets = map[string]string{}
	}
	for k, v := range defaults.Files {
		if _, ok := dc.Files[k]; !ok {
			dc.Files[k] = v
		}
	}
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch c.Variance {
	case VariancePooled, VarianceWelch, VarianceAuto:
	default:
		return fmt.Errorf("无效的 ttest_variance %q (pooled|welch|auto)", c.Variance)
	}
	if c.Schedule != "" && c.Watch {
		return fmt.Errorf("schedule 与 watch 不能同时启用")
	}
	return nil
}

// ApplyEnv 加载 .env 并用环境变量覆盖敏感配置
func (c *Config) ApplyEnv(envFiles ...string) error {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("加载 .env 失败: %w", err)
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvMailPassword); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv(EnvSMTPPassword); v != "" {
		c.SendEmail.Password = v
	}
	if v := os.Getenv(EnvWebhookURL); v != "" {
		c.Webhook.URL = v
	}
	return nil
}

// DefaultDataConfig 与 SQL 导出脚本一致的默认文件名
func DefaultDataConfig() *DataConfig {
	return &DataConfig{
		Files: map[string]string{
			DatasetTrips:         "trips.csv",
			DatasetWeather:       "weather_records.csv",
			DatasetExtract:       "moved_project_sql_result_07.csv",
			DatasetCompanies:     "moved_project_sql_result_01.csv",
			DatasetNeighborhoods: "moved_project_sql_result_04.csv",
		},
		Sheets: map[string]string{},
	}
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (dc *DataConfig) GetFile(dataset string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.Files[dataset]
}

func (dc *DataConfig) SetFile(dataset, name string) {
	mu.Lock()
	defer mu.Unlock()
	dc.Files[dataset] = name
}

func (dc *DataConfig) GetSheet(dataset string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.Sheets[dataset]
}

// Path 数据集在数据目录下的完整路径；未配置返回空串
func (dc *DataConfig) Path(dataDir, dataset string) string {
	name := dc.GetFile(dataset)
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dataDir, name)
}
