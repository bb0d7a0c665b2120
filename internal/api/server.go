package api

import (
    "context"
    "log"
    "strings"
    "sync"
    "time"

    "golang.org/x/time/rate"

    "salesops/internal/auth"
    "salesops/internal/config"
    "salesops/internal/geo"
    "salesops/internal/store"
)

type Server struct {
    Store    store.Store
    Auth     *auth.Verifier
    Broker   EventBroker
    Resolver *geo.Resolver
    Config   config.Config

    limMu    sync.Mutex
    limiters map[string]*rate.Limiter // tenant -> limiter
}

// NewServer loads configuration from CONFIG_FILE and the environment.
// If DATABASE_URL is unset, uses the in-memory store.
func NewServer() (*Server, error) {
    cfg, err := config.Load()
    if err != nil { return nil, err }
    return NewServerWithConfig(cfg)
}

// NewServerWithConfig wires the store, broker and resolver for cfg.
func NewServerWithConfig(cfg config.Config) (*Server, error) {
    st, err := openStore(cfg)
    if err != nil { return nil, err }
    // Broker selection
    var broker EventBroker
    if cfg.RedisURL != "" {
        if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
            broker = rb
        } else {
            log.Printf("redis broker unavailable, using in-memory: %v", err)
            broker = NewBroker()
        }
    } else {
        broker = NewBroker()
    }
    return &Server{
        Store:    st,
        Auth:     auth.NewVerifierFromEnv(),
        Broker:   broker,
        Resolver: geo.NewResolver(cfg.Geo),
        Config:   cfg,
        limiters: map[string]*rate.Limiter{},
    }, nil
}

func openStore(cfg config.Config) (store.Store, error) {
    dsn := strings.TrimSpace(cfg.DatabaseURL)
    switch {
    case dsn == "":
        return store.NewMemory(), nil
    case strings.HasPrefix(dsn, "sqlite://"):
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        return store.NewSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
    default:
        sp, err := store.NewPostgres(dsn)
        if err != nil { return nil, err }
        // Run migrations (dev helper)
        if cfg.Migrate {
            if err := sp.MigrateDir(cfg.MigrationsDir); err != nil { log.Printf("migrate: %v", err) }
        }
        return sp, nil
    }
}
