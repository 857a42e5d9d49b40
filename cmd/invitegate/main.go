package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"invitegate/config"
	"invitegate/internal/api"
	"invitegate/internal/dispatcher"
	"invitegate/internal/ledger"
	"invitegate/internal/model"
	"invitegate/internal/pkg/gateway"
	"invitegate/internal/pkg/kafka"
	"invitegate/internal/pkg/logger"
	"invitegate/internal/pkg/platform"
	"invitegate/internal/pkg/ratelimit"
	"invitegate/internal/pkg/redisq"
	"invitegate/internal/pkg/webhook"
	"invitegate/internal/pkg/workerpool"
	"invitegate/internal/service"
)

// eventSource is the common surface of the three stream adapters.
type eventSource interface {
	Run(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Webhook.Secret == "" {
		log.Warn("INVITEGATE_WEBHOOK_SECRET is empty, the refresh endpoint accepts unauthenticated requests")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Core state and collaborators.
	invites := ledger.New()
	platformClient := platform.NewClient(cfg.Platform.APIURL, cfg.Platform.Token)
	notifier := webhook.NewClient(cfg.Webhook.BaseURL, cfg.Webhook.Secret, cfg.Webhook.Timeout)

	attributor := service.NewAttributor(invites, platformClient, cfg.Platform.GuildID, log)
	refresher := service.NewRefresher(invites, platformClient, cfg.Platform.GuildID, cfg.Refresh.Interval, log)
	tracker := service.NewTracker(attributor, notifier, log)

	// Startup probe naming the watched guild. Failing here is not
	// fatal; the invite snapshot may still be readable.
	previewCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	preview, err := platformClient.GetGuildPreview(previewCtx, cfg.Platform.GuildID)
	cancel()
	if err != nil {
		log.Warn("guild preview unavailable",
			zap.String("guild_id", cfg.Platform.GuildID),
			zap.Error(err),
		)
	} else {
		log.Info("watching guild",
			zap.String("guild_id", preview.ID),
			zap.String("name", preview.Name),
			zap.Int("approximate_member_count", preview.ApproximateMemberCount),
		)
	}

	pool := workerpool.New(cfg.Workers.Size, cfg.Workers.QueueSize, log)
	pool.Start()
	defer pool.Stop()

	disp := dispatcher.New(pool, log)
	disp.On(model.EventMemberJoin, tracker.HandleMemberJoin)
	disp.On(model.EventMemberLeave, tracker.HandleMemberLeave)
	disp.On(model.EventInviteCreate, refresher.HandleInviteCreate)
	disp.On(model.EventInviteDelete, refresher.HandleInviteDelete)

	source, err := newSource(cfg, disp, log)
	if err != nil {
		log.Fatal("event source initialization failed", zap.Error(err))
	}
	log.Info("event source ready", zap.String("kind", cfg.Source.Kind))

	gin.SetMode(gin.ReleaseMode)
	bucket := ratelimit.NewTokenBucket(5, 1)
	handler := api.NewHandler(refresher, invites, cfg.Platform.GuildID)
	router := api.NewRouter(handler, api.NewMiddlewareManager(cfg.Webhook.Secret, bucket, log))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return refresher.Run(gctx)
	})

	g.Go(func() error {
		return source.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("service stopped", zap.Error(err))
		return
	}
	log.Info("shutdown complete")
}

// newSource builds the configured event source.
func newSource(cfg *config.Config, disp *dispatcher.Dispatcher, log *logger.Logger) (eventSource, error) {
	switch cfg.Source.Kind {
	case config.SourceGateway:
		return gateway.NewClient(cfg.Platform.GatewayURL, cfg.Platform.Token, cfg.Platform.GuildID, disp, log), nil
	case config.SourceKafka:
		return kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, disp, log)
	case config.SourceRedis:
		return redisq.NewSubscriber(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel, disp, log)
	default:
		return nil, fmt.Errorf("unknown event source %q", cfg.Source.Kind)
	}
}
