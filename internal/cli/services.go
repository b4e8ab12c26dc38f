package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mcdonaldj/xboxftp/internal/adapters/ftprepo"
	"github.com/mcdonaldj/xboxftp/internal/adapters/lognotifier"
	"github.com/mcdonaldj/xboxftp/internal/adapters/memrepo"
	"github.com/mcdonaldj/xboxftp/internal/adapters/multinotifier"
	"github.com/mcdonaldj/xboxftp/internal/adapters/osfs"
	"github.com/mcdonaldj/xboxftp/internal/adapters/ratelimited"
	"github.com/mcdonaldj/xboxftp/internal/adapters/s3repo"
	"github.com/mcdonaldj/xboxftp/internal/adapters/ziparchive"
	"github.com/mcdonaldj/xboxftp/internal/config"
	"github.com/mcdonaldj/xboxftp/internal/history"
	"github.com/mcdonaldj/xboxftp/internal/logger"
	"github.com/mcdonaldj/xboxftp/internal/ports"
	"github.com/mcdonaldj/xboxftp/internal/upload"
)

// defaultConfigService wraps the config package functions.
type defaultConfigService struct{}

func (d *defaultConfigService) Load() (*config.Config, error) { return config.Load() }
func (d *defaultConfigService) Save(cfg *config.Config) error { return cfg.Save() }
func (d *defaultConfigService) ConfigPath() string { return config.ConfigPath() }
func (d *defaultConfigService) DefaultConfig() *config.Config { return config.DefaultConfig() }

// defaultHistoryService keeps the history next to the config file.
type defaultHistoryService struct{}

func (d *defaultHistoryService) Load() (*history.History, error) { return history.Load(config.Dir()) }
func (d *defaultHistoryService) Save(h *history.History) error { return h.Save(config.Dir()) }

// defaultUploadService builds the real pipeline from the config.
type defaultUploadService struct{}

func (d *defaultUploadService) Upload(ctx context.Context, cfg *config.Config, req UploadRequest) ([]upload.GameResult, error) {
	if err := logger.Setup(logger.Options{
		Level:   cfg.LogLevel,
		Dir:     config.ExpandPath(cfg.LogDir),
		Console: !req.Quiet,
	}); err != nil {
		return nil, err
	}

	log := lognotifier.New(logger.New("upload"), lognotifier.WithGameLogDir(config.ExpandPath(cfg.LogDir)))
	defer func() { _ = log.Close() }()
	notifier := multinotifier.New(logger.New("notifier"), log, req.Notifier)

	u, err := NewUploader(ctx, cfg, req.Strategy, notifier)
	if err != nil {
		return nil, err
	}
	return u.Execute(ctx, req.Archives), nil
}

func (d *defaultUploadService) Check(ctx context.Context, cfg *config.Config, archive string) (upload.CheckResult, error) {
	u, err := NewUploader(ctx, cfg, "", multinotifier.Nop{})
	if err != nil {
		return upload.CheckResult{}, err
	}
	return u.Check(ctx, archive)
}

// NewUploader wires an uploader for the configured backend. strategy
// overrides the configured resume strategy when not empty.
func NewUploader(ctx context.Context, cfg *config.Config, strategy string, notifier ports.ProgressNotifier) (*upload.Uploader, error) {
	if strategy == "" {
		strategy = cfg.ResumeStrategy
	}
	resume, err := upload.NewResumeStrategy(strategy)
	if err != nil {
		return nil, err
	}

	repos, err := NewRepositoryFactory(ctx, cfg, logger.New(cfg.EffectiveBackend()))
	if err != nil {
		return nil, err
	}

	opts := upload.DefaultOptions()
	opts.Strategy = resume
	if cfg.TempDir != "" {
		opts.TempDir = config.ExpandPath(cfg.TempDir)
	}

	return upload.New(ziparchive.New(), repos, notifier, osfs.New(), opts), nil
}

// NewRepositoryFactory returns the factory for the configured backend,
// rate limited when probe_rate_limit is set.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.RepositoryFactory, error) {
	var factory ports.RepositoryFactory
	switch cfg.EffectiveBackend() {
	case config.BackendFTP:
		factory = ftprepo.NewFactory(ftprepo.Config{
			Host:           cfg.Host,
			Port:           cfg.Port,
			User:           cfg.User,
			Password:       cfg.Password,
			Root:           cfg.GameRootDirectory,
			ConnectTimeout: cfg.ConnectTimeout,
			RetryBudget:    cfg.ConnectRetryBudget,
		}, ftprepo.WithLogger(log))

	case config.BackendS3:
		s3cfg := s3repo.Config{
			Bucket:      cfg.S3.Bucket,
			Region:      cfg.S3.Region,
			Endpoint:    cfg.S3.Endpoint,
			AccessKey:   cfg.S3.AccessKey,
			SecretKey:   cfg.S3.SecretKey,
			Prefix:      cfg.S3.Prefix,
			PathStyle:   cfg.S3.PathStyle,
			RetryBudget: cfg.ConnectRetryBudget,
		}
		client, err := s3repo.NewClient(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		factory = s3repo.NewFactory(client, s3cfg, s3repo.WithLogger(log))

	case config.BackendMemory:
		factory = memrepo.NewStore(cfg.MemoryUploadDelay).Factory()

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	return ratelimited.NewFactory(factory, cfg.ProbeRateLimit), nil
}
