package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/kitakits/internal/audit"
	"github.com/wolfeidau/kitakits/internal/auth"
	"github.com/wolfeidau/kitakits/internal/bot"
	"github.com/wolfeidau/kitakits/internal/clock"
	"github.com/wolfeidau/kitakits/internal/inventory"
	"github.com/wolfeidau/kitakits/internal/logger"
	"github.com/wolfeidau/kitakits/internal/messenger"
	"github.com/wolfeidau/kitakits/internal/report"
	"github.com/wolfeidau/kitakits/internal/seed"
	"github.com/wolfeidau/kitakits/internal/store"
	memorystore "github.com/wolfeidau/kitakits/internal/store/memory"
	postgresstore "github.com/wolfeidau/kitakits/internal/store/postgres"
	sqlitestore "github.com/wolfeidau/kitakits/internal/store/sqlite"
	"github.com/wolfeidau/kitakits/internal/telemetry"
	"github.com/wolfeidau/kitakits/internal/webhook"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ServerCmd struct {
	// Server configuration
	Host string `help:"HTTP server listen host" default:"0.0.0.0" env:"HOST"`
	Port int    `help:"HTTP server listen port" default:"5000" env:"PORT"`

	// Messenger platform configuration
	VerifyToken string `help:"token echoed back during webhook verification" env:"FACEBOOK_VERIFY_TOKEN"`
	AccessToken string `help:"page access token for the Send API" env:"FACEBOOK_ACCESS_TOKEN"`
	AppSecret   string `help:"app secret used to verify webhook signatures" env:"FACEBOOK_APP_SECRET"`
	GraphURL    string `help:"Graph API base URL" default:"https://graph.facebook.com/v18.0" env:"FACEBOOK_GRAPH_URL"`

	// Bot configuration
	SessionTTL           time.Duration `help:"how long a login stays valid" default:"24h" env:"KITAKITS_SESSION_TTL"`
	SessionPruneInterval time.Duration `help:"how often expired sessions are deleted (0 disables)" default:"1h" env:"KITAKITS_SESSION_PRUNE_INTERVAL"`
	SingleTokenLogin     bool          `help:"accept [name] as a login using name as username and password" default:"true" negatable:"" env:"KITAKITS_SINGLE_TOKEN_LOGIN"`
	ReportsDir           string        `help:"directory for generated statistics reports" default:"reports" env:"KITAKITS_REPORTS_DIR"`
	ReportWindow         time.Duration `help:"look-back window for the daily activity sheet" default:"720h" env:"KITAKITS_REPORT_WINDOW"`
	ReportMaxAge         time.Duration `help:"age after which report files are deleted" default:"720h" env:"KITAKITS_REPORT_MAX_AGE"`

	// Account seeding
	AdminUsername string `help:"administrative account created at startup if absent" default:"admin" env:"KITAKITS_ADMIN_USERNAME"`
	AdminPassword string `help:"password for the administrative account" default:"admin" env:"KITAKITS_ADMIN_PASSWORD"`
	SeedFile      string `help:"YAML file of additional accounts to create" type:"path" env:"KITAKITS_SEED_FILE"`

	// Development and operational modes
	Tracing     bool    `help:"enable tracing and metrics export" default:"false" env:"KITAKITS_TRACING"`
	SampleRatio float64 `help:"trace sampling ratio" default:"1.0" env:"KITAKITS_TRACE_SAMPLE_RATIO"`

	// Store configuration
	StoreType     string             `help:"store type (sqlite, postgres or memory)" default:"sqlite" env:"KITAKITS_STORE_TYPE" enum:"sqlite,postgres,memory"`
	SQLiteStore   SQLiteStoreFlags   `embed:"" prefix:"sqlite-"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type SQLiteStoreFlags struct {
	Path     string `help:"SQLite database file" default:"messenger_bot.db" env:"KITAKITS_SQLITE_PATH"`
	PoolSize int    `help:"number of pooled SQLite connections" default:"4"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"10"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"true" negatable:"" env:"KITAKITS_POSTGRES_AUTO_MIGRATE"`
}

func (c *ServerCmd) Validate() error {
	if c.VerifyToken == "" {
		return errors.New("webhook verify token is required (--verify-token or FACEBOOK_VERIFY_TOKEN)")
	}
	if c.AccessToken == "" {
		return errors.New("page access token is required (--access-token or FACEBOOK_ACCESS_TOKEN)")
	}
	if c.AppSecret == "" {
		return errors.New("app secret is required (--app-secret or FACEBOOK_APP_SECRET)")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.StoreType == "postgres" && c.PostgresStore.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	zerolog.DefaultContextLogger = &log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "kitakits-server",
			Version:     globals.Version,
			SampleRatio: c.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	stores, closeStores, err := c.openStores(ctx, log)
	if err != nil {
		return err
	}
	defer closeStores()

	clk := clock.Real()

	accounts := []seed.Account{{Username: c.AdminUsername, Password: c.AdminPassword}}
	if c.SeedFile != "" {
		f, err := seed.LoadFile(c.SeedFile)
		if err != nil {
			return err
		}
		accounts = append(accounts, f.Users...)
	}
	created, err := seed.EnsureUsers(ctx, stores.Users, clk, accounts...)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	log.Info().Int("created", created).Int("accounts", len(accounts)).Msg("User seeding completed")

	sender, err := messenger.NewClient(messenger.Config{
		GraphURL:    c.GraphURL,
		AccessToken: c.AccessToken,
	})
	if err != nil {
		return fmt.Errorf("failed to create messenger client: %w", err)
	}

	ledger := auth.NewLedger(stores.Sessions, clk, c.SessionTTL)

	interpreter := bot.NewInterpreter(bot.Config{
		Credentials: auth.NewCredentials(stores.Users, clk),
		Sessions:    ledger,
		Counter:     inventory.NewCounter(stores.Items, clk),
		Audit:       audit.NewRecorder(stores.Audit, clk),
		Reporter: report.NewGenerator(stores.Reports, clk, report.Config{
			Dir:    c.ReportsDir,
			Window: c.ReportWindow,
			MaxAge: c.ReportMaxAge,
		}),
		Deliverer:        sender,
		SingleTokenLogin: c.SingleTokenLogin,
	})

	if c.SessionPruneInterval > 0 {
		go pruneSessions(ctx, ledger, c.SessionPruneInterval)
	}

	hooks := webhook.NewHandler(webhook.Config{
		VerifyToken: c.VerifyToken,
		AppSecret:   []byte(c.AppSecret),
		Version:     globals.Version,
		Clock:       clk,
	}, interpreter, sender)

	mux := http.NewServeMux()
	hooks.Routes(mux)

	var handler http.Handler = gzhttp.GzipHandler(mux)
	handler = logger.HTTPRequests(log, handler)
	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "kitakits")
	}

	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	srv := configureHTTPServer(addr, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("store", c.StoreType).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	return nil
}

// openStores creates the stores for the configured backend and a func
// releasing their resources.
func (c *ServerCmd) openStores(ctx context.Context, log zerolog.Logger) (store.Stores, func(), error) {
	switch c.StoreType {
	case "postgres":
		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return store.Stores{}, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		// Run migrations if enabled
		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return store.Stores{}, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		log.Info().Msg("Using PostgreSQL stores with shared connection pool")
		return postgresstore.NewStores(pool), pool.Close, nil

	case "sqlite":
		pool, err := sqlitestore.Open(sqlitestore.Config{
			Path:     c.SQLiteStore.Path,
			PoolSize: c.SQLiteStore.PoolSize,
		})
		if err != nil {
			return store.Stores{}, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}

		log.Info().Str("path", c.SQLiteStore.Path).Msg("Using SQLite stores")
		return sqlitestore.NewStores(pool), func() {
			if err := pool.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close sqlite pool")
			}
		}, nil

	default:
		log.Warn().Msg("Using in-memory stores, all state is lost on restart")
		return memorystore.NewStores(), func() {}, nil
	}
}

func pruneSessions(ctx context.Context, ledger *auth.Ledger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := ledger.PruneExpired(ctx)
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to prune expired sessions")
				continue
			}
			if removed > 0 {
				zerolog.Ctx(ctx).Info().Int("removed", removed).Msg("Pruned expired sessions")
			}
		}
	}
}
