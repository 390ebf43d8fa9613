package email

import (
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TaxiAnalysis/src/config"
	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/storage"

	"golang.org/x/text/encoding/simplifiedchinese"
)

type fakeMailService struct {
	emails       []*Email
	connectErr   error
	disconnected bool
}

func (f *fakeMailService) Connect() error                       { return f.connectErr }
func (f *fakeMailService) Disconnect()                          { f.disconnected = true }
func (f *fakeMailService) FetchUnreadEmails() ([]*Email, error) { return f.emails, nil }

func newTestLogger(t *testing.T) *storage.Logger {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "test.log"), io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

const extractCSV = "start_ts,weather_conditions,duration_seconds\n" +
	"2017-11-25 16:00:00,Good,2410.0\n" +
	"2017-11-25 14:00:00,Bad,1920.0\n"

func TestFilterLatestTargetEmail(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	emails := []*Email{
		{UID: 1, Subject: "taxi data weekly", Date: base},
		{UID: 2, Subject: "newsletter", Date: base.Add(3 * time.Hour)},
		{UID: 3, Subject: "taxi data weekly", Date: base.Add(time.Hour)},
	}
	got := filterLatestTargetEmail(emails, "taxi data")
	if got == nil || got.UID != 3 {
		t.Errorf("got %+v, want UID 3", got)
	}
	if filterLatestTargetEmail(emails, "missing") != nil {
		t.Error("expected nil for unmatched keyword")
	}
}

func TestCheckAndProcessEmails(t *testing.T) {
	logger := newTestLogger(t)

	svc := &fakeMailService{emails: []*Email{{UID: 9, Subject: "taxi data"}}}
	got, err := CheckAndProcessEmails(svc, "taxi", logger)
	if err != nil || got == nil || got.UID != 9 {
		t.Fatalf("got %+v, %v", got, err)
	}
	if !svc.disconnected {
		t.Error("connection should be closed")
	}

	empty := &fakeMailService{}
	if got, err := CheckAndProcessEmails(empty, "taxi", logger); got != nil || err != nil {
		t.Errorf("empty inbox: %+v, %v", got, err)
	}

	failing := &fakeMailService{connectErr: errors.New("refused")}
	if _, err := CheckAndProcessEmails(failing, "taxi", logger); err == nil {
		t.Error("expected connect error")
	}
}

func TestFetchAttachmentsSavesData(t *testing.T) {
	logger := newTestLogger(t)
	dir := t.TempDir()
	handler := NewAttachmentHandler(dir, config.DefaultDataConfig(), logger)

	svc := &fakeMailService{emails: []*Email{{
		UID:     42,
		Subject: "taxi data 2017-11",
		Attachments: []*Attachment{
			{Filename: "moved_project_sql_result_07.csv", Content: []byte(extractCSV)},
			{Filename: "notes.txt", Content: []byte("ignore me")},
			{Filename: "other.csv", Content: []byte("a,b\n1,2\n")},
		},
	}}}

	saved, err := FetchAttachments(svc, handler, "taxi data", logger)
	if err != nil {
		t.Fatalf("FetchAttachments: %v", err)
	}
	want := filepath.Join(dir, "moved_project_sql_result_07.csv")
	if len(saved) != 1 || saved[0] != want {
		t.Fatalf("saved = %v", saved)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != extractCSV {
		t.Errorf("content = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "other.csv")); !os.IsNotExist(err) {
		t.Error("unconfigured attachment should not be saved")
	}

	// 同一封邮件不重复处理
	if !handler.IsProcessed(42) {
		t.Error("mail should be marked processed")
	}
	again, err := FetchAttachments(svc, handler, "taxi data", logger)
	if err != nil || len(again) != 0 {
		t.Errorf("second fetch = %v, %v", again, err)
	}
}

func TestHandleRejectsMalformedAttachment(t *testing.T) {
	dir := t.TempDir()
	handler := NewAttachmentHandler(dir, config.DefaultDataConfig(), newTestLogger(t))

	mail := &Email{UID: 7, Attachments: []*Attachment{
		{Filename: "moved_project_sql_result_07.csv", Content: []byte(extractCSV)},
		{Filename: "weather_records.csv", Content: []byte("record_id,ts\n1,2017-11-25 16:00:00\n")},
	}}
	_, err := handler.Handle(mail)
	var mie *model.MalformedInputError
	if !errors.As(err, &mie) || mie.Column != "temperature" {
		t.Fatalf("expected missing column error, got %v", err)
	}
	if handler.IsProcessed(7) {
		t.Error("rejected mail must not be marked processed")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("nothing should be written, found %d entries", len(entries))
	}
}

func TestDecodeHeaderGBK(t *testing.T) {
	raw, err := simplifiedchinese.GBK.NewEncoder().String("出租车数据")
	if err != nil {
		t.Fatal(err)
	}
	header := "=?GBK?B?" + base64.StdEncoding.EncodeToString([]byte(raw)) + "?="
	if got := decodeHeader(header); got != "出租车数据" {
		t.Errorf("decodeHeader = %q", got)
	}
	if got := decodeHeader("plain subject"); got != "plain subject" {
		t.Errorf("decodeHeader = %q", got)
	}
}

func TestNewReportMail(t *testing.T) {
	cfg := &config.Config{}
	cfg.SendEmail.Username = "bot@example.com"
	cfg.SendEmail.Subject = "Weather duration report"

	if _, err := NewReportMail(cfg, "body"); err == nil {
		t.Error("expected error without recipients")
	}

	cfg.SendEmail.To = []string{"analyst@example.com"}
	attachment := filepath.Join(t.TempDir(), "report.xlsx")
	if err := os.WriteFile(attachment, []byte("xlsx"), 0o644); err != nil {
		t.Fatal(err)
	}
	e, err := NewReportMail(cfg, "Reject H0", attachment)
	if err != nil {
		t.Fatalf("NewReportMail: %v", err)
	}
	raw, err := e.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	msg := string(raw)
	for _, want := range []string{"Subject: Weather duration report", "analyst@example.com", "report.xlsx"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}

	if _, err := NewReportMail(cfg, "body", filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Error("expected error for missing attachment")
	}
}
