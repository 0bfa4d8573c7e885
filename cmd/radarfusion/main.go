// radarfusion fuses aircraft reports from several feeds into one predicted
// picture and serves it over HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/unklstewy/radarfusion/internal/api"
	"github.com/unklstewy/radarfusion/internal/auth"
	"github.com/unklstewy/radarfusion/internal/db"
	"github.com/unklstewy/radarfusion/internal/ingest"
	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/config"
	"github.com/unklstewy/radarfusion/pkg/logger"
	"github.com/unklstewy/radarfusion/pkg/tracking"
)

func main() {
	configPath := flag.String("config", "configs/radarfusion.toml", "Path to configuration file")
	writeDefault := flag.Bool("write-default-config", false, "Write the default configuration to -config and exit")
	hashPassword := flag.String("hash-password", "", "Print the bcrypt hash of a password for [[auth.accounts]] and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	if *writeDefault {
		if err := config.DefaultConfig().Save(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("radarfusion stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("radarfusion stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	clock := tracking.SystemClock{}
	collection := tracking.NewCollection(cfg.TrackingConfig(), clock, log)
	predictor := tracking.NewPredictor(cfg.TrackingConfig())
	sampler := tracking.NewSampler(collection, predictor, cfg.TrackingAirport(), cfg.SamplerConfig(), clock, log)

	log.Info("Fusion engine configured",
		logger.Strings("priority", cfg.Sources.Priority),
		logger.Duration("real_fix_timeout", cfg.TrackingConfig().RealFixTimeout),
		logger.Int("feeds", len(cfg.Feeds)))

	var wg sync.WaitGroup
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Component stopped", logger.String("component", name), logger.Error(err))
			}
		}()
	}

	for _, feed := range cfg.Feeds {
		if !feed.Enabled {
			continue
		}
		poller, err := newFeedPoller(feed, collection, log)
		if err != nil {
			return err
		}
		log.Info("Feed enabled",
			logger.String("feed", feed.Name),
			logger.String("source", feed.Source),
			logger.Float64("radius_nm", feed.RadiusNM))
		start("feed "+feed.Name, poller.Run)
	}

	if cfg.Kafka.Enabled {
		src, err := adsb.ParseSource(cfg.Kafka.Source)
		if err != nil {
			return fmt.Errorf("kafka source: %w", err)
		}
		reader := ingest.NewKafkaReader(ingest.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		consumer := ingest.NewKafkaConsumer(reader, collection, src, log)
		log.Info("Kafka consumer enabled",
			logger.Strings("brokers", cfg.Kafka.Brokers),
			logger.String("topic", cfg.Kafka.Topic))
		start("kafka", consumer.Run)
	}

	var opts []api.Option
	if cfg.Database.Enabled {
		database, err := db.ReconnectWithRetry(ctx, cfg.Database, 5, time.Second, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		recorder := db.NewRecorder(database, cfg.Database, log)
		defer recorder.Close()
		if err := database.InitSchema(ctx); err != nil {
			return err
		}

		updates, cancel := sampler.Subscribe(8)
		defer cancel()
		start("recorder", func(ctx context.Context) error { return recorder.Run(ctx, updates) })
		opts = append(opts, api.WithStorage(recorderStatus{recorder}))
	}

	start("sampler", sampler.Run)

	if cfg.Auth.Enabled {
		svc, err := newAuthService(cfg.Auth)
		if err != nil {
			return err
		}
		opts = append(opts, api.WithAuth(svc))
		log.Info("Source control requires an operator token", logger.Int("accounts", len(cfg.Auth.Accounts)))
	}
	srv := api.NewServer(sampler, collection.Sources(), cfg.Server.AllowedOrigins, log, opts...)
	httpServer := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     srv.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var result error
	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-serveErr:
		result = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", logger.Error(err))
	}

	wg.Wait()
	return result
}

func newFeedPoller(feed config.FeedConfig, sink ingest.Upserter, log *logger.Logger) (*ingest.Poller, error) {
	src, err := adsb.ParseSource(feed.Source)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", feed.Name, err)
	}
	client := adsb.NewAirplanesLiveClient(adsb.AirplanesLiveOptions{
		BaseURL:           feed.BaseURL,
		CenterLat:         feed.CenterLat,
		CenterLon:         feed.CenterLon,
		RadiusNM:          feed.RadiusNM,
		RequestsPerSecond: feed.RequestsPerSecond,
		Source:            src,
		Timeout:           time.Duration(feed.TimeoutSeconds) * time.Second,
	})
	return ingest.NewPoller(client, sink, feed.PollInterval(), adsb.DefaultRetryConfig(), log.Named(feed.Name)), nil
}

// recorderStatus reports the recorder's database on /api/v1/health.
type recorderStatus struct {
	recorder *db.Recorder
}

func (s recorderStatus) StorageStatus(ctx context.Context) api.StorageStatus {
	st := s.recorder.Status(ctx)
	return api.StorageStatus{
		Connected:      st.Connected,
		Aircraft:       st.Stats.Aircraft,
		RecentAircraft: st.Stats.RecentAircraft,
		Positions:      st.Stats.PositionRecords,
	}
}

func newAuthService(cfg config.AuthConfig) (*auth.Service, error) {
	accounts := make([]auth.Account, len(cfg.Accounts))
	for i, a := range cfg.Accounts {
		accounts[i] = auth.Account{Name: a.Name, PasswordHash: a.PasswordHash, Role: a.Role}
	}
	return auth.NewService(auth.Config{
		Secret:        cfg.Secret,
		TokenDuration: cfg.TokenDuration(),
		Accounts:      accounts,
	})
}
