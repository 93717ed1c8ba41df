// Server entrypoint: wires configuration, storage, the audit pipeline, and
// the HTTP surface, then runs until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"heirloom/internal/audit"
	audithandler "heirloom/internal/audit/handler"
	auditquery "heirloom/internal/audit/query"
	"heirloom/internal/audit/relay"
	auditpg "heirloom/internal/audit/store/postgres"
	estatehandler "heirloom/internal/estate/handler"
	"heirloom/internal/estate/invite"
	estateservice "heirloom/internal/estate/service"
	estatestore "heirloom/internal/estate/store"
	httptransport "heirloom/internal/http"
	"heirloom/internal/jwtauth"
	"heirloom/internal/media"
	mediahandler "heirloom/internal/media/handler"
	mediaservice "heirloom/internal/media/service"
	mediastore "heirloom/internal/media/store"
	"heirloom/internal/platform/config"
	"heirloom/internal/platform/httpserver"
	"heirloom/internal/platform/logger"
	"heirloom/internal/platform/metrics"
	"heirloom/internal/platform/postgres"
	"heirloom/internal/platform/redis"
	questhandler "heirloom/internal/quest/handler"
	questservice "heirloom/internal/quest/service"
	queststore "heirloom/internal/quest/store"
	"heirloom/internal/verification"
	verificationhandler "heirloom/internal/verification/handler"
	txrunner "heirloom/pkg/platform/tx"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("open postgres failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Invite codes live in Redis in production; the in-memory store keeps
	// local development working without one.
	var codeStore invite.CodeStore
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		codeStore = invite.NewRedisStore(redisClient)
	} else {
		log.Warn("redis not configured, invite codes held in memory")
		codeStore = invite.NewMemoryStore()
	}

	auditStore := auditpg.New(db)
	publisher := audit.NewPublisher(auditStore)
	runner := txrunner.NewSQLRunner(db)

	estateStore := estatestore.NewPostgres(db)
	questStore := queststore.NewPostgres(db)
	mediaStore := mediastore.NewPostgres(db)

	invites := invite.NewIssuer(codeStore, cfg.InviteTTL)
	estateSvc := estateservice.New(estateStore, invites, publisher, runner)

	gate := media.NewGate(mediaStore, questStore, publisher)
	mediaSvc := mediaservice.New(mediaStore, estateStore, questStore, publisher, runner)

	questSvc := questservice.New(questStore, estateStore, mediaSvc, publisher, runner, questservice.Policy{
		AllowActiveQuestEdits: cfg.AllowActiveQuestEdits,
	})

	var policy verification.AutoApprovalPolicy = verification.NeverAutoApprove{}
	if cfg.AutoApproveTier != "" {
		policy = verification.TierPolicy{Tier: cfg.AutoApproveTier}
	}
	verificationSvc := verification.New(questStore, estateStore, gate, policy, publisher, runner, verification.NewMetrics())

	auditSvc := auditquery.New(publisher, estateStore)

	jwtService := jwtauth.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	httpMetrics := metrics.New()

	var kafkaClient *kgo.Client
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err = kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.ConsumeTopics(cfg.Kafka.Topic),
			kgo.ConsumerGroup("heirloom-audit-materializer"),
		)
		if err != nil {
			log.Error("connect kafka failed", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()

		if err := relay.EnsureTopic(ctx, kafkaClient, cfg.Kafka.Topic); err != nil {
			log.Error("ensure audit topic failed", "error", err)
			os.Exit(1)
		}
	}

	healthChecks := []httptransport.HealthCheck{
		{Name: "postgres", Check: db.PingContext},
	}
	if redisClient != nil {
		healthChecks = append(healthChecks, httptransport.HealthCheck{
			Name: "redis", Check: redisClient.Health,
		})
	}
	if kafkaClient != nil {
		healthChecks = append(healthChecks, httptransport.HealthCheck{
			Name: "kafka", Check: kafkaClient.Ping,
		})
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		Metrics:        httpMetrics,
		TokenValidator: jwtService,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Handlers: []httptransport.Registrar{
			estatehandler.New(estateSvc, log),
			questhandler.New(questSvc, log),
			verificationhandler.New(verificationSvc, log),
			mediahandler.New(mediaSvc, log),
			audithandler.New(auditSvc, log),
		},
		HealthChecks: healthChecks,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if kafkaClient != nil {
		g.Go(func() error {
			return relay.NewRelay(db, kafkaClient, cfg.Kafka.Topic, log).Run(gctx)
		})
		g.Go(func() error {
			return relay.NewMaterializer(kafkaClient, auditStore, log).Run(gctx)
		})
	} else {
		log.Warn("kafka not configured, audit outbox will not be relayed")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
