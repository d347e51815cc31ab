package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"schoolcoord/internal/config"
	"schoolcoord/internal/core"
	"schoolcoord/internal/i18n"
)

// app carries the flags and collaborators shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer
	outMu  sync.Mutex

	output  string
	locale  string
	verbose bool

	loadConfig  func() (config.Config, error)
	openStorage func(context.Context, config.Config, *zap.Logger) (*core.Storage, error)
	metrics     *prometheus.Registry
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		output:      outputText,
		loadConfig:  config.Load,
		openStorage: core.OpenStorage,
		metrics:     prometheus.NewRegistry(),
	}
}

func (a *app) newLogger() *zap.Logger {
	level := zap.WarnLevel
	if a.verbose {
		level = zap.DebugLevel
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(a.stderr), level))
}

// session is an opened service together with the resources backing it.
type session struct {
	cfg       config.Config
	logger    *zap.Logger
	storage   *core.Storage
	service   *core.Service
	localizer *i18n.Localizer
	renderer  *renderer
}

func (s *session) Close() error {
	err := s.storage.Close()
	_ = s.logger.Sync()
	return err
}

// openSession loads configuration, opens storage and loads the stored
// snapshot. A load failure aborts the session so that a later save cannot
// overwrite remote state with an empty registry.
func (a *app) openSession(ctx context.Context) (*session, error) {
	if err := validateOutput(a.output); err != nil {
		return nil, err
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	locale := a.locale
	if locale == "" {
		locale = cfg.Locale
	}
	loc, err := i18n.New(locale)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	logger := a.newLogger()
	storage, err := a.openStorage(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	svc := core.NewService(storage.Adapter,
		core.WithLogger(logger.Named("service")),
		core.WithMetrics(core.NewPrometheusMetricsRecorder(a.metrics, "")),
	)
	s := &session{
		cfg:       cfg,
		logger:    logger,
		storage:   storage,
		service:   svc,
		localizer: loc,
		renderer:  &renderer{w: a.stdout, mu: &a.outMu, format: a.output, loc: loc},
	}
	if _, err := svc.Load(ctx); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	return s, nil
}
