package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/fpang/noteppt-cli/internal/auth"
	"github.com/fpang/noteppt-cli/internal/awsboot"
	"github.com/fpang/noteppt-cli/internal/backend"
	"github.com/fpang/noteppt-cli/internal/config"
	"github.com/fpang/noteppt-cli/internal/delivery"
	"github.com/fpang/noteppt-cli/internal/history"
	"github.com/fpang/noteppt-cli/internal/logging"
	"github.com/fpang/noteppt-cli/internal/metrics"
)

// commandContext holds state shared by subcommands: the configuration loaded
// once per invocation and lazily created clients.
type commandContext struct {
	configFlag   *string
	identityFlag *string

	started time.Time

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	awsOnce sync.Once
	awsCfg  aws.Config
	awsErr  error

	metricsFile *os.File
}

func newCommandContext(configFlag, identityFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		identityFlag: identityFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// setup loads configuration, then initializes logging and metrics for cmd.
func (c *commandContext) setup(cmd *cobra.Command) error {
	c.started = time.Now()
	cfg, err := c.ensureConfig()
	if err != nil {
		logging.InitWriter(cmd.ErrOrStderr(), "")
		return err
	}
	logging.InitWriter(cmd.ErrOrStderr(), cfg.LogLevel)

	if cfg.MetricsFile != "" {
		f, err := os.OpenFile(cfg.MetricsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open metrics file: %w", err)
		}
		c.metricsFile = f
		metrics.Configure(f, cmd.CommandPath())
	} else {
		metrics.Configure(nil, cmd.CommandPath())
	}
	return nil
}

func (c *commandContext) close() error {
	metrics.Configure(nil, "")
	if c.metricsFile == nil {
		return nil
	}
	err := c.metricsFile.Close()
	c.metricsFile = nil
	return err
}

func (c *commandContext) identityValue() string {
	if c.identityFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.identityFlag)
}

// resolveIdentity starts identity resolution in the background. Callers
// Bind the task before their first backend call.
func (c *commandContext) resolveIdentity(ctx context.Context) *auth.IdentityTask {
	return auth.ResolveIdentity(ctx, auth.ExplicitSource(c.identityValue()))
}

func (c *commandContext) backendClient() *backend.Client {
	cfg := c.configValue()
	var opts []backend.Option
	if cfg.RequestTimeoutSeconds > 0 {
		opts = append(opts, backend.WithTimeout(time.Duration(cfg.RequestTimeoutSeconds)*time.Second))
	}
	return backend.NewClient(cfg.BackendBaseURL, opts...)
}

func (c *commandContext) aws(ctx context.Context) (aws.Config, error) {
	c.awsOnce.Do(func() {
		cfg := c.configValue()
		c.awsCfg, c.awsErr = awsboot.LoadConfig(ctx, awsboot.Settings{
			Region:  cfg.AWS.Region,
			Profile: cfg.AWS.Profile,
		})
	})
	return c.awsCfg, c.awsErr
}

// deliverer builds the artifact sink named by sink.
func (c *commandContext) deliverer(ctx context.Context, sink, outDir string) (delivery.Deliverer, error) {
	cfg := c.configValue()
	switch sink {
	case config.SinkLocal:
		return delivery.LocalSink{Dir: outDir}, nil
	case config.SinkDialog:
		return delivery.DialogSink{Dir: outDir}, nil
	case config.SinkS3:
		if cfg.Delivery.S3Bucket == "" {
			return nil, fmt.Errorf("delivery sink s3 requires delivery.s3_bucket")
		}
		awsCfg, err := c.aws(ctx)
		if err != nil {
			return nil, err
		}
		ttl := time.Duration(cfg.Delivery.PresignTTLMinutes) * time.Minute
		return awsboot.S3Sink(awsCfg, cfg.Delivery.S3Bucket, cfg.Delivery.S3Prefix, ttl), nil
	default:
		return nil, fmt.Errorf("unknown delivery sink %q (want local, dialog or s3)", sink)
	}
}

// openHistory opens the configured job journal.
func (c *commandContext) openHistory(ctx context.Context) (history.Store, error) {
	cfg := c.configValue()
	switch cfg.History.Backend {
	case config.HistoryNone:
		return history.Nop{}, nil
	case config.HistoryDynamo:
		awsCfg, err := c.aws(ctx)
		if err != nil {
			return nil, err
		}
		return awsboot.DynamoHistory(awsCfg, cfg.History.DynamoTable), nil
	default:
		return history.OpenSQLite(ctx, cfg.History.Path)
	}
}

func (c *commandContext) startupLogger(cmd *cobra.Command) *logging.StartupLogger {
	cfg := c.configValue()
	sl := logging.NewStartupLogger(cmd.CommandPath()).
		Version(version).
		CommitHash(commitHash).
		Endpoint("backend", cfg.BackendBaseURL).
		Sink("history", cfg.History.Backend).
		Config("configPath", c.configPath).
		Feature("configFile", c.configExists).
		Feature("metrics", cfg.MetricsFile != "").
		InitDuration(time.Since(c.started))
	if cfg.MetricsFile != "" {
		sl.Sink("metrics", cfg.MetricsFile)
	}
	return sl
}
