package cli

import (
	"bomflow/internal/automation"
	"bomflow/internal/config"
	"bomflow/internal/database"
	"bomflow/internal/repository"
	"bomflow/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// app 命令之间共享的组件
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	engine   *automation.Engine
	triggers *services.BomTriggerService
	tasks    *services.TaskService
}

type appOptions struct {
	notifier automation.Notifier
	observer automation.Observer
}

// newApp 连接数据库并组装引擎与服务
func newApp(cfg *config.Config, opts appOptions) (*app, error) {
	log := logger()
	db, err := database.Open(cfg.Database, cfg.Monitoring.Tracing.Enabled, log)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
	}

	notifier := opts.notifier
	if notifier == nil {
		notifier = automation.LogNotifier(log)
	}
	triggerRepo := repository.NewTriggerRepository(db, log)
	logRepo := repository.NewTriggerLogRepository(db)
	materials := repository.NewMaterialRepository(db)
	dispatcher := automation.NewDefaultDispatcher(automation.HandlerDeps{
		Materials: materials,
		Templates: repository.NewBomTemplateRepository(db),
		Notifier:  notifier,
		Logger:    log,
	})

	engineOpts := []automation.EngineOption{
		automation.WithLogger(log),
		automation.WithTransactionalAttempts(cfg.Engine.TransactionalAttempts),
	}
	if opts.observer != nil {
		engineOpts = append(engineOpts, automation.WithObserver(opts.observer))
	}
	engine := automation.NewEngine(db, triggerRepo, logRepo, dispatcher, engineOpts...)

	return &app{
		cfg:      cfg,
		db:       db,
		engine:   engine,
		triggers: services.NewBomTriggerService(triggerRepo, logRepo, engine, log),
		tasks:    services.NewTaskService(db, materials, engine, log),
	}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// prometheusObserver 注册到默认 registry
func prometheusObserver(cfg *config.Config) (automation.Observer, prometheus.Gatherer) {
	if !cfg.Monitoring.Enabled {
		return nil, nil
	}
	observer, err := automation.NewPrometheusObserver(cfg.Monitoring.Namespace, prometheus.DefaultRegisterer)
	if err != nil {
		logrus.Warnf("metrics disabled: %v", err)
		return nil, nil
	}
	return observer, prometheus.DefaultGatherer
}
