package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/subcat/internal/config"
	"github.com/aliskhannn/subcat/internal/encoder"
	"github.com/aliskhannn/subcat/internal/infra/kafka/consumer"
	"github.com/aliskhannn/subcat/internal/infra/kafka/producer"
	"github.com/aliskhannn/subcat/internal/jobfile"
	jobmsg "github.com/aliskhannn/subcat/internal/kafka/handlers/job"
	"github.com/aliskhannn/subcat/internal/loader"
	"github.com/aliskhannn/subcat/internal/metrics"
	"github.com/aliskhannn/subcat/internal/processor"
	jobrepo "github.com/aliskhannn/subcat/internal/repository/job"
	jobsvc "github.com/aliskhannn/subcat/internal/service/job"
	"github.com/aliskhannn/subcat/internal/storage/file"
)

// metricsInterval is how often worker mode rewrites the metrics textfile.
const metricsInterval = 15 * time.Second

// storage reads source images and stores outputs.
type storage interface {
	Load(ctx context.Context, path string) (io.ReadCloser, error)
	Save(ctx context.Context, dir, filename string, src io.Reader) (string, error)
}

func main() {
	flags := pflag.CommandLine
	configPath := flags.String("config", "./config/config.yaml", "path to the config file")
	jobPath := flags.String("job", "./config.json", "path to the job descriptor (run mode)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Int("concurrency", 0, "images loaded at once per job, 0 = GOMAXPROCS")
	flags.String("storage", "local", "storage driver: local or minio")
	flags.String("metrics", "", "write prometheus metrics to this textfile")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: subcat [run|worker] [flags]\n")
		flags.PrintDefaults()
	}
	pflag.Parse()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad(*configPath, flags)

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Str("level", cfg.Log.Level).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	mode := "run"
	if flags.NArg() > 0 {
		mode = flags.Arg(0)
	}

	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "run":
		err = runOnce(ctx, cfg, *jobPath)
	case "worker":
		err = runWorker(ctx, cfg)
	default:
		flags.Usage()
		err = fmt.Errorf("unknown mode %q", mode)
	}

	if err != nil {
		zlog.Logger.Error().Err(err).Msg("subcat failed")
		stop()
		os.Exit(1)
	}
}

// newStorage opens the storage driver selected in cfg.
func newStorage(ctx context.Context, cfg config.Storage) (storage, error) {
	switch cfg.Driver {
	case "", "local":
		return file.NewLocal(cfg.BasePath), nil
	case "minio":
		return file.NewStorage(ctx, cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.BucketName, cfg.UseSSL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newProcessor(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*processor.Processor, error) {
	st, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return processor.New(loader.New(st, m), encoder.New(st, m), m, cfg.Worker.Concurrency), nil
}

// runOnce processes the job descriptor at jobPath.
func runOnce(ctx context.Context, cfg *config.Config, jobPath string) error {
	job, err := jobfile.Load(jobPath)
	if err != nil {
		return err
	}

	m := metrics.New(metrics.Options{Labels: cfg.Monitoring.Labels})
	p, err := newProcessor(ctx, cfg, m)
	if err != nil {
		return err
	}

	dst, err := p.Process(ctx, job)

	if cfg.Monitoring.Textfile != "" {
		if werr := metrics.WriteTextfile(m, cfg.Monitoring.Textfile); werr != nil {
			zlog.Logger.Warn().Err(werr).Msg("failed to write metrics")
		}
	}

	if err != nil {
		return err
	}

	zlog.Logger.Info().Str("output", dst).Msg("done")

	return nil
}

// runWorker consumes jobs from Kafka until ctx is canceled.
func runWorker(ctx context.Context, cfg *config.Config) error {
	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Retry strategy for Kafka calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	m := metrics.New(metrics.Options{Labels: cfg.Monitoring.Labels})
	p, err := newProcessor(ctx, cfg, m)
	if err != nil {
		return err
	}

	repo := jobrepo.NewRepository(db)
	prod := producer.New(&cfg.Kafka, strategy)
	service := jobsvc.NewService(p, repo, prod, cfg.Worker.JobTimeout)
	c := consumer.New(&cfg.Kafka, strategy, jobmsg.NewHandler(service))

	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	if cfg.Monitoring.Textfile != "" {
		wg.Add(1)
		go exportMetrics(ctx, &wg, m, cfg.Monitoring.Textfile)
	}

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("shutting down worker")

	wg.Wait()

	// Close master and slave databases.
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close master DB")
	}
	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave", i).Msg("failed to close slave DB")
		}
	}

	// Close Kafka producer and consumer clients.
	if err := prod.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
	}
	if err := c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}

	return nil
}

// exportMetrics rewrites the metrics textfile periodically and once more on
// shutdown.
func exportMetrics(ctx context.Context, wg *sync.WaitGroup, m *metrics.Metrics, filename string) {
	defer wg.Done()

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := metrics.WriteTextfile(m, filename); err != nil {
				zlog.Logger.Warn().Err(err).Msg("failed to write metrics")
			}
			return
		case <-ticker.C:
			if err := metrics.WriteTextfile(m, filename); err != nil {
				zlog.Logger.Warn().Err(err).Msg("failed to write metrics")
			}
		}
	}
}
