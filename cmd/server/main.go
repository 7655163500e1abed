package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"idhub/internal/accept"
	"idhub/internal/forms"
	"idhub/internal/notify"
	"idhub/internal/platform/config"
	"idhub/internal/platform/httpserver"
	"idhub/internal/platform/logger"
	platformredis "idhub/internal/platform/redis"
	"idhub/internal/profile"
	"idhub/internal/ratelimit"
	"idhub/internal/registry"
	"idhub/internal/store"
	"idhub/internal/tokens"
	"idhub/internal/translate"
	httptransport "idhub/internal/transport/http"
	"idhub/pkg/platform/tx"
)

// main wires dependencies and keeps the server lifecycle small. Backends are
// optional: without Postgres, Redis or Kafka configured the process runs
// fully in memory, which is what dev and the e2e suite use.
func main() {
	cfg := config.FromEnv()
	log := logger.NewStructured()

	attrTypes := registry.NewMemoryAttributeTypes()
	idTypes := registry.NewMemoryIdentityTypes()
	classes := store.NewClassRegistry()

	var (
		entities store.EntityStore
		requests store.RequestStore
		runner   tx.Runner
		health   func() error
		mem      *store.Memory
	)
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		if _, err := db.Exec(store.Schema); err != nil {
			log.Error("apply schema", "error", err)
			os.Exit(1)
		}
		pg := store.NewPostgres(db, classes)
		entities, requests, runner = pg, pg, tx.NewSQLRunner(db)
		health = db.Ping
	} else {
		mem = store.NewMemory(classes)
		entities, requests, runner = mem, mem, mem
		log.Warn("no postgres configured, using in-memory store")
	}

	var tokenStore tokens.Store = tokens.NewMemoryStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		tokenStore = tokens.NewRedisStore(redisClient.Client)
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dispatcher notify.Dispatcher = notify.NopDispatcher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := notify.NewKafkaDispatcher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, notify.WithKafkaLogger(log))
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		dispatcher = kafka
	}
	asyncDispatcher := notify.NewAsyncDispatcher(dispatcher, 128, log)
	dispatcher = asyncDispatcher

	actionRegistry := translate.NewActionRegistry(translate.Deps{
		AttrTypes: attrTypes,
		IDTypes:   idTypes,
		Logger:    log,
	})
	profiles := profile.NewStore(actionRegistry)
	formStore := forms.NewMemoryStore()
	if mem != nil {
		if err := seedDev(attrTypes, idTypes, mem, formStore); err != nil {
			log.Error("seed dev fixtures", "error", err)
			os.Exit(1)
		}
	}

	service := accept.NewService(accept.Config{
		Forms:      formStore,
		Profiles:   profiles,
		Executor:   translate.NewExecutor(profiles, translate.WithLogger(log)),
		Entities:   entities,
		Requests:   requests,
		Runner:     runner,
		Rewriter:   tokens.NewRewriter(tokenStore, tokens.WithLogger(log)),
		Dispatcher: dispatcher,
		AttrTypes:  attrTypes,
		IDTypes:    idTypes,
		Logger:     log,
	})

	var submitLimiter *ratelimit.Middleware
	if cfg.SubmitRateLimit > 0 {
		var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.SubmitRateLimit, time.Minute)
		if redisClient != nil {
			limiter = ratelimit.NewRedisLimiter(redisClient.Client, cfg.SubmitRateLimit, time.Minute)
		}
		submitLimiter = ratelimit.New(limiter, log)
	}

	handler := httptransport.NewHandler(service, log)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		AdminToken:    cfg.AdminToken,
		JWTSigningKey: []byte(cfg.JWTSigningKey),
		SubmitLimiter: submitLimiter,
		Health:        health,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := asyncDispatcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting idhub", "addr", cfg.Addr)
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

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
