package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TaxiAnalysis/src/config"
	"TaxiAnalysis/src/datasource/file"
	"TaxiAnalysis/src/storage"

	"github.com/robfig/cron"
)

func main() {
	jsonFolder := flag.String("config", "./config", "配置目录(config.json, dataconfig.json)")
	envFile := flag.String("env", ".env", "环境变量文件")
	once := flag.Bool("once", false, "忽略 schedule/watch，只运行一次")
	extract := flag.Bool("extract", false, "运行前从 PostgreSQL 导出输入数据")
	crosscheck := flag.Bool("crosscheck", false, "用内存 SQLite 复核关联结果")
	flag.Parse()

	cfg, dcfg, err := config.LoadConfig(*jsonFolder, "config.json", "dataconfig.json")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		log.Fatal(err)
	}
	if *crosscheck {
		cfg.CrossCheck = true
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName, os.Stderr)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()
	if err := logger.SetMaxSize(cfg.LogMaxSize); err != nil {
		logger.Warningf("log_max_size 无效，使用默认值: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, logger)

	a := newApp(cfg, dcfg, logger, os.Stdout)

	if *extract {
		if err := a.exportFromDB(ctx); err != nil {
			logger.Errorf("导出失败: %v", err)
			os.Exit(1)
		}
	}

	switch {
	case *once || (cfg.Schedule == "" && !cfg.Watch):
		if err := a.run(ctx); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
	case cfg.Schedule != "":
		err = serveSchedule(ctx, a)
	default:
		err = serveWatch(ctx, a)
	}
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

// serveSchedule 按 cron 表达式定时运行，直到收到退出信号
func serveSchedule(ctx context.Context, a *app) error {
	c := cron.New()
	err := c.AddFunc(a.cfg.Schedule, func() {
		if err := a.run(ctx); err != nil {
			a.logger.Error(err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}

	c.Start()
	defer c.Stop()

	a.logger.Infof("定时分析服务已启动(%s)，按Ctrl+C退出", a.cfg.Schedule)
	<-ctx.Done()
	return nil
}

// serveWatch 监控输入文件，变化后重新分析；配置了邮箱时定时收取附件
func serveWatch(ctx context.Context, a *app) error {
	var names []string
	for _, dataset := range []string{
		config.DatasetTrips, config.DatasetWeather, config.DatasetExtract,
		config.DatasetCompanies, config.DatasetNeighborhoods,
	} {
		if name := a.dcfg.GetFile(dataset); name != "" {
			names = append(names, name)
		}
	}

	if err := os.MkdirAll(a.cfg.DataDir, 0755); err != nil {
		return err
	}
	monitor, err := file.NewFileMonitor(a.cfg.DataDir, names...)
	if err != nil {
		return fmt.Errorf("监控目录失败: %w", err)
	}
	defer monitor.Close()

	if a.mailbox != nil && a.cfg.Email.CheckInterval > 0 {
		// 附件落盘后由目录监控触发分析
		c := cron.New()
		interval := time.Duration(a.cfg.Email.CheckInterval).String()
		if err := c.AddFunc("@every "+interval, a.fetchMail); err != nil {
			return fmt.Errorf("创建邮件检查任务失败: %w", err)
		}
		c.Start()
		defer c.Stop()
		a.logger.Infof("邮件检查已启动(间隔: %s)", interval)
	}

	if err := a.run(ctx); err != nil {
		a.logger.Error(err.Error())
	}

	a.logger.Infof("目录监控已启动: %s，按Ctrl+C退出", a.cfg.DataDir)
	return monitor.Watch(ctx, func(changed []string) {
		a.logger.Infof("输入文件变化: %v", changed)
		if err := a.analyzeAndDeliver(ctx); err != nil {
			a.logger.Error(err.Error())
		}
	})
}

// analyzeAndDeliver 只分析本地文件，不再收取邮件
func (a *app) analyzeAndDeliver(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rep, err := a.analyze(ctx)
	if err != nil {
		return err
	}
	a.deliver(ctx, rep)
	return nil
}

// handleSignals SIGHUP 重新打开日志文件(配合外部日志切割)，SIGINT/SIGTERM 退出
func handleSignals(cancel context.CancelFunc, logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := logger.Reopen(); err != nil {
				logger.Errorf("重新打开日志失败: %v", err)
			} else {
				logger.Info("日志文件已重新打开")
			}
			continue
		}
		logger.Info("Received signal: " + sig.String() + ", shutting down...")
		cancel()
		return
	}
}
