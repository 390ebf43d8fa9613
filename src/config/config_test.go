package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfigs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{
		"data_dir": "/srv/taxi",
		"schedule": "@every 1h",
		"ttest_variance": "auto",
		"database": {"timeout": "5s"},
		"email": {"check_interval": "2m"}
	}`)
	writeFile(t, dir, "dataconfig.json", `{
		"files": {"trips": "trips_2017.xlsx"},
		"sheets": {"trips": "Trips"}
	}`)

	cfg, dcfg, err := loadConfigs(dir, "config.json", "dataconfig.json")
	if err != nil {
		t.Fatalf("loadConfigs: %v", err)
	}

	if cfg.Variance != VarianceAuto {
		t.Errorf("Variance = %q", cfg.Variance)
	}
	if time.Duration(cfg.Database.Timeout) != 5*time.Second {
		t.Errorf("Database.Timeout = %v", time.Duration(cfg.Database.Timeout))
	}
	if time.Duration(cfg.Email.CheckInterval) != 2*time.Minute {
		t.Errorf("CheckInterval = %v", time.Duration(cfg.Email.CheckInterval))
	}
	if cfg.OutputDir != "./output" || cfg.LogName != "app.log" {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	if got := dcfg.Path(cfg.DataDir, DatasetTrips); got != filepath.Join("/srv/taxi", "trips_2017.xlsx") {
		t.Errorf("trips path = %q", got)
	}
	if got := dcfg.GetSheet(DatasetTrips); got != "Trips" {
		t.Errorf("trips sheet = %q", got)
	}
	// 未配置的数据集使用默认文件名
	if got := dcfg.GetFile(DatasetExtract); got != "moved_project_sql_result_07.csv" {
		t.Errorf("extract file = %q", got)
	}
}

func TestLoadConfigsErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{"ttest_variance": "bogus"}`)
	writeFile(t, dir, "dataconfig.json", `{}`)
	if _, _, err := loadConfigs(dir, "config.json", "dataconfig.json"); err == nil {
		t.Error("expected error for invalid ttest_variance")
	}

	writeFile(t, dir, "config.json", `{not json`)
	writeFile(t, dir, "dataconfig.json", `[1,2]`)
	_, _, err := loadConfigs(dir, "config.json", "dataconfig.json")
	if err == nil || !strings.Contains(err.Error(), "多个错误") {
		t.Errorf("expected combined error, got %v", err)
	}

	if _, _, err := loadConfigs(dir, "missing.json", "dataconfig.json"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	writeFile(t, dir, ".env", "TAXI_PG_DSN=postgres://u:p@db/taxi\n")
	t.Setenv(EnvWebhookURL, "http://hooks.local/taxi")

	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv(EnvPostgresDSN) })

	if cfg.Database.DSN != "postgres://u:p@db/taxi" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Webhook.URL != "http://hooks.local/taxi" {
		t.Errorf("Webhook.URL = %q", cfg.Webhook.URL)
	}
}

func TestDurationJSON(t *testing.T) {
	d := Duration(90 * time.Second)
	b, err := d.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var back Duration
	if err := back.UnmarshalJSON(b); err != nil {
		t.Fatal(err)
	}
	if back != d {
		t.Errorf("round trip %v != %v", back, d)
	}
}
