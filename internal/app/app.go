// Package app assembles the daemon: config, logging, clients, dispatcher,
// escalation, watcher, and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"autopub/internal/backend/bridge"
	"autopub/internal/config"
	"autopub/internal/dispatch"
	"autopub/internal/escalate"
	"autopub/internal/eventbus"
	"autopub/internal/httpapi"
	"autopub/internal/platform"
	"autopub/internal/stage"
	"autopub/internal/status"
	"autopub/internal/storage"
	"autopub/internal/watch"
	"autopub/internal/webhook"
	"autopub/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service

	bus      eventbus.Bus
	store    storage.Store
	recorder *storage.Recorder

	statuses *status.Store
	disp     *dispatch.Dispatcher
	pipeline *escalate.Pipeline
	watcher  *watch.Service
	server   *httpapi.Server

	sessionDir string

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	httpErr chan error
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	sec := loadSecrets()

	// Escalation channel first: it doubles as the operator log sink.
	var sender escalate.Sender
	var webhookClient *webhook.Client
	switch {
	case cfg.Telegram != nil && cfg.Telegram.Enabled:
		tg, err := escalate.NewTelegramSender(escalate.TelegramConfig{
			Token:  sec.telegramToken,
			ChatID: cfg.Telegram.ChatID,
		})
		if err != nil {
			return nil, fmt.Errorf("telegram sender: %w", err)
		}
		sender = tg
	case cfg.Webhook != nil:
		timeout, err := config.ParseDurationField("webhook.timeout", cfg.Webhook.Timeout)
		if err != nil {
			return nil, err
		}
		webhookClient = webhook.New(webhook.Config{
			BaseURL:  cfg.Webhook.BaseURL,
			Username: sec.webhookUsername,
			Password: sec.webhookPassword,
			Timeout:  timeout,
		})
		sender = webhookClient
	}

	var logSender logx.Sender
	if sender != nil {
		logSender = sender
	}
	logSvc, log := logx.New(mapLoggingConfig(cfg), logSender)
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	// Telegram has one fixed receiver; the webhook target is resolved at
	// Start once the backend can be queried.
	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		logSvc.SetOperatorTarget(strconv.FormatInt(cfg.Telegram.ChatID, 10))
	}

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	// Escalation pipeline (optional: needs a sender and object storage).
	var pipeline *escalate.Pipeline
	if sender != nil && cfg.Minio != nil {
		artifacts, err := escalate.NewMinioStore(escalate.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: sec.minioAccessKey,
			SecretKey: sec.minioSecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio store: %w", err)
		}
		var workflow escalate.WorkflowTrigger
		if cfg.Workflow != nil {
			workflow = escalate.NewWorkflowClient(escalate.WorkflowConfig{
				URL:    cfg.Workflow.URL,
				APIKey: sec.workflowAPIKey,
				User:   cfg.Workflow.User,
			})
		}
		esCfg, err := mapEscalateConfig(cfg)
		if err != nil {
			return nil, err
		}
		pipeline = escalate.New(esCfg, sender, artifacts, workflow, store,
			log.With(logx.String("comp", "escalate")))
	} else {
		log.Warn("escalation disabled: no sender or object storage configured")
	}

	// Backend registry over the automation sidecar.
	setupTimeout, err := config.ParseDurationField("bridge.setup_timeout", cfg.Bridge.SetupTimeout)
	if err != nil {
		return nil, err
	}
	bridgeClient := bridge.New(bridge.Config{
		BaseURL:      cfg.Bridge.BaseURL,
		SetupTimeout: setupTimeout,
	}, log.With(logx.String("comp", "bridge")))
	registry := bridge.NewRegistry(bridgeClient)

	sessionDir := cfg.Sessions.Dir
	if sessionDir == "" {
		sessionDir = "./cookies"
	}

	statuses := status.NewStore()
	disp := dispatch.New(registry, statuses, bus, sessionDir,
		log.With(logx.String("comp", "dispatch")))

	wCfg, err := mapWatcherConfig(cfg)
	if err != nil {
		return nil, err
	}
	var watcher *watch.Service
	if pipeline != nil {
		disp.SetSessionExpiredHook(func(platformID, account string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			key := dispatch.LoginJobID(platformID, account)
			_ = pipeline.Escalate(ctx, key, platform.QRImagePath(sessionDir, platformID))
		})
		watcher = watch.New(wCfg, sessionDir, pipeline,
			log.With(logx.String("comp", "watch")))
	} else if wCfg.Enabled {
		log.Warn("session watcher configured but escalation is disabled; not starting")
	}

	readTimeout, err := config.ParseDurationField("server.read_timeout", cfg.Server.ReadTimeout)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := config.ParseDurationField("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	if err != nil {
		return nil, err
	}
	server, err := httpapi.NewServer(httpapi.Config{
		Addr:            cfg.Server.Addr,
		Username:        sec.apiUsername,
		Password:        sec.apiPassword,
		ReadTimeout:     readTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, disp, statuses, stage.New(cfg.Stage.Root, log.With(logx.String("comp", "stage"))),
		log.With(logx.String("comp", "httpapi")))
	if err != nil {
		return nil, err
	}

	return &App{
		cfgPath:    cfgPath,
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		bus:        bus,
		store:      store,
		recorder:   storage.NewRecorder(store, bus, log.With(logx.String("comp", "recorder"))),
		statuses:   statuses,
		disp:       disp,
		pipeline:   pipeline,
		watcher:    watcher,
		server:     server,
		sessionDir: sessionDir,
		httpErr:    make(chan error, 1),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.recorder.Start(runCtx)

	if a.watcher != nil {
		if err := a.watcher.Start(runCtx); err != nil {
			cancel()
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	// Resolve the operator log target from the live receiver set. Telegram
	// targets are static and already set.
	if a.pipeline != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			rctx, rcancel := context.WithTimeout(runCtx, 10*time.Second)
			defer rcancel()
			receiver, err := a.pipeline.SelectReceiver(rctx)
			if err != nil {
				a.log.Debug("operator log target unresolved", logx.Err(err))
				return
			}
			a.logs.SetOperatorTarget(receiver)
		}()
	}

	// Live config: only logging is hot-swappable; everything else needs a
	// restart.
	updates := a.cfgm.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(updates)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.logs.Apply(mapLoggingConfig(cfg))
				a.log.Info("logging config applied")
			}
		}
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Start(); err != nil {
			select {
			case a.httpErr <- err:
			default:
			}
			cancel()
		}
	}()

	a.log.Info("autopub started", logx.String("config", a.cfgPath))
	return nil
}

// Err reports a fatal listener error, if one occurred.
func (a *App) Err() error {
	select {
	case err := <-a.httpErr:
		return err
	default:
		return nil
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("autopub stopping")

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if a.watcher != nil {
		a.watcher.Stop(ctx)
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.recorder.Stop()
	a.wg.Wait()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	_ = a.logs.Close()
	return errors.Join(errs...)
}
