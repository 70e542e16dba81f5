package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/filestore"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/memstore"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	var store shop.Store
	var users auth.UserFinder
	switch cfg.Store {
	case "memory":
		m := memstore.New()
		store, users = m, m
		log.Println("store: in-memory")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		s := postgres.NewStore(db)
		store, users = s, s
	}

	// Redis status cache
	var cache shop.StatusCache
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis %s unreachable, tracking is uncached until it is back: %v", cfg.RedisAddr, err)
		}
		cache = redisx.StatusCache{R: rdb}
	}

	// Kafka producer
	var events shop.Publisher
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024)
		prod.Start(context.Background())
		events = prod
	}

	hasher := auth.Bcrypt{}
	tokens := &auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL, Issuer: cfg.ServiceName}
	svc := &shop.Service{
		Store:    store,
		Events:   events,
		Cache:    cache,
		Hasher:   hasher,
		Producer: cfg.ServiceName,
	}

	router := httpx.NewRouter(cfg.CORSOrigins)
	httpx.ServeUploads(router, cfg.PublicBaseURL, cfg.UploadDir)
	httpx.Mount(router, httpx.Deps{
		Shop:        svc,
		Credentials: &auth.Credentials{Users: users, Passwords: hasher, Tokens: tokens},
		Tokens:      tokens,
		Images:      filestore.Local{Root: cfg.UploadDir, BaseURL: cfg.PublicBaseURL},
		ShopName:    cfg.ServiceName,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Printf("server: %v", err)
	}

	if prod != nil {
		prod.Close()      // stop accepting, flush the buffer
		prod.WaitClosed() // writer closed
	}
}
