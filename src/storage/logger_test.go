package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesFileAndConsole(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "app.log")
	var console bytes.Buffer

	logger, err := NewLogger(path, &console)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.now = func() time.Time { return time.Date(2017, 11, 25, 16, 0, 0, 0, time.UTC) }

	logger.Info("加载完成")
	logger.Warningf("dropped %d trips", 3)
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "[2017-11-25 16:00:00] INFO: 加载完成\n[2017-11-25 16:00:00] WARNING: dropped 3 trips\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
	if console.String() != want {
		t.Errorf("console = %q", console.String())
	}

	// 关闭后写入不应 panic
	logger.Error("after close")
}

func TestLoggerRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	logger, err := NewLogger(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()
	if err := logger.SetMaxSize("8 * 4"); err != nil {
		t.Fatal(err)
	}

	logger.Info(strings.Repeat("x", 40))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected rotated file plus fresh log, got %d entries", len(entries))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("fresh log size = %d", info.Size())
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		expr    string
		want    int64
		wantErr bool
	}{
		{"10 * 1024 * 1024", 10 << 20, false},
		{"512", 512, false},
		{"10 * MB", 0, true},
	}
	for _, tt := range tests {
		got, err := eval(tt.expr)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("eval(%q) = %d, %v", tt.expr, got, err)
		}
	}
}

func TestLevelString(t *testing.T) {
	if FATAL.String() != "FATAL" || LogLevel(42).String() != "UNKNOWN" {
		t.Error("unexpected level names")
	}
}
