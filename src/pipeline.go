package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"TaxiAnalysis/src/config"
	"TaxiAnalysis/src/datapush"
	"TaxiAnalysis/src/datasource/db"
	"TaxiAnalysis/src/datasource/email"
	"TaxiAnalysis/src/datasource/file"
	"TaxiAnalysis/src/model"
	"TaxiAnalysis/src/processor"
	"TaxiAnalysis/src/report"
	"TaxiAnalysis/src/sqlcheck"
	"TaxiAnalysis/src/storage"
)

// 流水线阶段
const (
	StageLoad     = "load"
	StageClassify = "classify"
	StageJoin     = "join"
	StageTest     = "test"
	StageReport   = "report"
)

// 输出文件名
const (
	WorkbookName     = "report.xlsx"
	ObservationsName = "observations.csv"
)

// 观测值来源
const (
	SourceRaw     = "raw"
	SourceExtract = "extract"
)

type app struct {
	cfg    *config.Config
	dcfg   *config.DataConfig
	logger *storage.Logger
	stdout io.Writer
	now    func() time.Time

	mu      sync.Mutex // 同一时间只运行一次分析
	mailbox *email.EmailClient
	handler *email.AttachmentHandler
}

func newApp(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger, stdout io.Writer) *app {
	a := &app{
		cfg:    cfg,
		dcfg:   dcfg,
		logger: logger,
		stdout: stdout,
		now:    time.Now,
	}
	if cfg.Email.Server != "" {
		a.mailbox = email.NewEmailClient(cfg.Email.Server, cfg.Email.Username, cfg.Email.Password, logger)
		a.handler = email.NewAttachmentHandler(cfg.DataDir, dcfg, logger)
	}
	return a
}

func stageErr(stage string, err error) error {
	return &model.StageError{Stage: stage, Err: err}
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// run 一次完整运行: 收取邮件附件 -> 分析 -> 投递
func (a *app) run(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.now()
	a.fetchMail()

	rep, err := a.analyze(ctx)
	if err != nil {
		return err
	}
	a.deliver(ctx, rep)
	a.logger.Infof("运行完成，耗时: %v", time.Since(start))
	return nil
}

// fetchMail 收取最新目标邮件中的数据附件，失败只记录日志，继续使用已有文件
func (a *app) fetchMail() {
	if a.mailbox == nil {
		return
	}
	saved, err := email.FetchAttachments(a.mailbox, a.handler, a.cfg.Email.TargetSubject, a.logger)
	if err != nil {
		a.logger.Errorf("检查处理邮件失败: %v", err)
		return
	}
	if len(saved) > 0 {
		a.logger.Infof("邮件附件已更新: %s", strings.Join(saved, ", "))
	}
}

// exportFromDB 从 PostgreSQL 导出输入数据
func (a *app) exportFromDB(ctx context.Context) error {
	timeout := time.Duration(a.cfg.Database.Timeout)
	exporter, err := db.NewExporter(ctx, a.cfg.Database.DSN, timeout, a.logger)
	if err != nil {
		return err
	}
	defer exporter.Close()
	_, err = exporter.ExportAll(ctx, a.cfg.DataDir, a.dcfg)
	return err
}

// analyze 加载 -> 分类 -> 关联 -> 检验 -> 报告，任一阶段失败即终止
func (a *app) analyze(ctx context.Context) (report.Report, error) {
	rep := report.Report{GeneratedAt: a.now()}

	tripsPath := a.dcfg.Path(a.cfg.DataDir, config.DatasetTrips)
	weatherPath := a.dcfg.Path(a.cfg.DataDir, config.DatasetWeather)
	extractPath := a.dcfg.Path(a.cfg.DataDir, config.DatasetExtract)

	var obs []model.JoinedObservation
	switch {
	case exists(tripsPath) && exists(weatherPath):
		rep.Source = SourceRaw
		trips, err := file.LoadTrips(tripsPath, a.dcfg.GetSheet(config.DatasetTrips))
		if err != nil {
			return rep, stageErr(StageLoad, err)
		}
		weather, err := file.LoadWeather(weatherPath, a.dcfg.GetSheet(config.DatasetWeather))
		if err != nil {
			return rep, stageErr(StageLoad, err)
		}
		a.logger.Infof("读取行程 %d 条，天气记录 %d 条", len(trips), len(weather))

		labels, dupes := processor.LabelHours(weather)
		if len(labels) == 0 {
			return rep, stageErr(StageClassify, errors.New("no weather hours to classify"))
		}
		if dupes > 0 {
			a.logger.Warningf("同一小时存在多条天气记录 %d 条，取 record_id 最小者", dupes)
		}

		obs, rep.Stats = processor.JoinLabeled(trips, labels, dupes)
		if a.cfg.CrossCheck {
			rep.CrossCheck = a.crossCheck(ctx, trips, weather, obs)
		}

	case exists(extractPath):
		rep.Source = SourceExtract
		rows, err := file.LoadExtract(extractPath, a.dcfg.GetSheet(config.DatasetExtract))
		if err != nil {
			return rep, stageErr(StageLoad, err)
		}
		a.logger.Infof("读取抽取结果 %d 条", len(rows))
		obs, rep.Stats, err = processor.FromExtract(rows)
		if err != nil {
			return rep, stageErr(StageClassify, err)
		}

	default:
		return rep, stageErr(StageLoad, fmt.Errorf("no input in %s: need %s and %s, or %s",
			a.cfg.DataDir, filepath.Base(tripsPath), filepath.Base(weatherPath), filepath.Base(extractPath)))
	}

	st := rep.Stats
	a.logger.Infof("关联结果: 行程 %d 线路 %d 周六 %d 观测 %d", st.TotalTrips, st.RouteMatched, st.SaturdayMatched, st.Joined)
	if st.DroppedNoWeather > 0 {
		a.logger.Warningf("%d 条周六行程找不到对应小时的天气记录，已丢弃", st.DroppedNoWeather)
	}
	if len(obs) == 0 {
		return rep, stageErr(StageJoin, errors.New("no joined observations"))
	}
	rep.Observations = obs

	bad, good := processor.Partition(obs)
	res, err := processor.TTest(bad, good, processor.VarianceMode(a.cfg.Variance))
	if err != nil {
		return rep, stageErr(StageTest, err)
	}
	rep.Result = res
	a.logger.Infof("t=%.4f df=%.2f p=%.6g reject=%v", res.TStatistic, res.DF, res.PValue, res.RejectNull)

	rep.Companies = a.loadCompanies()
	rep.Neighborhoods = a.loadNeighborhoods()

	if err := a.writeReports(rep); err != nil {
		return rep, stageErr(StageReport, err)
	}
	return rep, nil
}

func (a *app) crossCheck(ctx context.Context, trips []model.Trip, weather []model.WeatherRecord, obs []model.JoinedObservation) string {
	res, err := sqlcheck.CrossCheck(ctx, trips, weather, obs)
	if err != nil {
		a.logger.Errorf("SQL 复核失败: %v", err)
		return "error: " + err.Error()
	}
	if !res.OK() {
		for _, m := range res.Mismatches {
			a.logger.Warning("SQL 复核不一致: " + m)
		}
		return fmt.Sprintf("%d mismatches (sql %d rows, go %d rows)", len(res.Mismatches), res.SQLRows, res.GoRows)
	}
	a.logger.Infof("SQL 复核一致: %d 行", res.SQLRows)
	return fmt.Sprintf("ok (%d rows)", res.SQLRows)
}

// 排行数据可选，缺失或出错时跳过
func (a *app) loadCompanies() []model.Company {
	path := a.dcfg.Path(a.cfg.DataDir, config.DatasetCompanies)
	if !exists(path) {
		a.logger.Info("未找到公司行程数据，跳过排行")
		return nil
	}
	companies, err := file.LoadCompanies(path, a.dcfg.GetSheet(config.DatasetCompanies))
	if err == nil {
		companies, err = processor.TopCompanies(companies, processor.TopN)
	}
	if err != nil {
		a.logger.Warningf("公司排行跳过: %v", err)
		return nil
	}
	return companies
}

func (a *app) loadNeighborhoods() []model.Neighborhood {
	path := a.dcfg.Path(a.cfg.DataDir, config.DatasetNeighborhoods)
	if !exists(path) {
		a.logger.Info("未找到区域下客数据，跳过排行")
		return nil
	}
	hoods, err := file.LoadNeighborhoods(path, a.dcfg.GetSheet(config.DatasetNeighborhoods))
	if err == nil {
		hoods, err = processor.TopNeighborhoods(hoods, processor.TopN)
	}
	if err != nil {
		a.logger.Warningf("区域排行跳过: %v", err)
		return nil
	}
	return hoods
}

func (a *app) writeReports(rep report.Report) error {
	if err := os.MkdirAll(a.cfg.OutputDir, 0755); err != nil {
		return err
	}
	if err := report.Print(a.stdout, rep); err != nil {
		return err
	}
	workbook := filepath.Join(a.cfg.OutputDir, WorkbookName)
	if err := report.WriteWorkbook(workbook, rep); err != nil {
		return err
	}
	csvPath := filepath.Join(a.cfg.OutputDir, ObservationsName)
	if err := report.WriteObservationsCSV(csvPath, rep.Observations); err != nil {
		return err
	}
	a.logger.Infof("报告已写入 %s", a.cfg.OutputDir)
	return nil
}

// deliver 推送结果与发送报告邮件，失败只记录日志
func (a *app) deliver(ctx context.Context, rep report.Report) {
	conclusion := report.Conclusion(rep.Result)
	if a.cfg.Webhook.URL != "" {
		pusher := datapush.NewPusher(a.cfg.Webhook.URL, time.Duration(a.cfg.Webhook.Timeout), a.logger)
		payload := datapush.NewPayload(rep.GeneratedAt, rep.Source, rep.Stats, rep.Result, conclusion)
		if err := pusher.Push(ctx, payload); err != nil {
			a.logger.Errorf("webhook 推送失败: %v", err)
		}
	}
	if a.cfg.SendEmail.Server != "" && len(a.cfg.SendEmail.To) > 0 {
		body := report.TestName(rep.Result) + "\n" + conclusion
		workbook := filepath.Join(a.cfg.OutputDir, WorkbookName)
		if err := email.SendReport(a.cfg, body, workbook); err != nil {
			a.logger.Errorf("报告邮件发送失败: %v", err)
		} else {
			a.logger.Info("报告邮件发送成功")
		}
	}
}
