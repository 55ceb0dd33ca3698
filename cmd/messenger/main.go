package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/amoylab/umbra/internal/apiserver/handler"
	"github.com/amoylab/umbra/internal/apiserver/middleware"
	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/config"
	"github.com/amoylab/umbra/internal/i18n"
	"github.com/amoylab/umbra/internal/realtime/delivery"
	"github.com/amoylab/umbra/internal/realtime/gateway"
	"github.com/amoylab/umbra/internal/realtime/mailbox"
	"github.com/amoylab/umbra/internal/realtime/presence"
	"github.com/amoylab/umbra/internal/realtime/session"
	"github.com/amoylab/umbra/internal/store"
	"github.com/amoylab/umbra/pkg/helper"
	"github.com/amoylab/umbra/pkg/logger"
	"github.com/amoylab/umbra/pkg/metrics"
	"github.com/amoylab/umbra/pkg/trace"
	"github.com/amoylab/umbra/pkg/utils"
	"github.com/amoylab/umbra/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of messenger",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("messenger version %s\n", version.Get())
		},
	}

	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Validate the configuration file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfgPath, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("configuration %s is invalid: %w", cfgPath, err)
			}
			fmt.Printf("configuration %s is valid\n", cfgPath)
			return nil
		},
	}

	rootCmd = &cobra.Command{
		Use:   cnst.CommandName,
		Short: "Anonymous messenger server",
		Long:  `Serves the REST API and the real-time WebSocket endpoint of the anonymous messenger`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", cnst.CommandName+".yaml", "path to configuration file, like /etc/umbra/messenger.yaml")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(testCmd)
}

// app holds the long-lived components so they can be stopped in order
type app struct {
	logger   *zap.Logger
	cfg      *config.MessengerConfig
	db       *store.DB
	notifier presence.Notifier
	registry *session.Registry
	engine   *gin.Engine
	shutdown func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.MessengerConfig, lg *zap.Logger) (*app, error) {
	i18n.SetDefaultLanguage(cfg.I18n.DefaultLang)
	if err := i18n.InitTranslator(cfg.I18n.Path); err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}

	shutdown := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		var err error
		shutdown, err = trace.InitTracing(ctx, &cfg.Tracing, lg)
		if err != nil {
			return nil, fmt.Errorf("failed to init tracing: %w", err)
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	db, err := store.NewStore(lg, &cfg.Database)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	notifier, err := presence.NewNotifier(lg, &cfg.Presence)
	if err != nil {
		_ = db.Close()
		_ = shutdown(ctx)
		return nil, fmt.Errorf("failed to init presence notifier: %w", err)
	}

	mb := mailbox.New(lg, cfg.Realtime.Mailbox.Capacity, cfg.Realtime.Mailbox.DrainPacing, m)
	registry := session.NewRegistry(lg, mb, notifier, m)
	router := delivery.New(lg, db, registry, mb, cfg.Realtime.Delivery, m)
	gw := gateway.New(lg, db, registry, router, cfg.Realtime.WebSocket, cfg.Server.AllowedOrigins, m)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.Tracing.Enabled {
		engine.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	engine.Use(middleware.Language())
	if m != nil {
		engine.Use(m.Middleware())
		engine.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	engine.GET("/ws/:user_id", gw.Handle)
	handler.New(lg, db, router, registry, mb).Register(engine, lg, db)

	return &app{
		logger:   lg,
		cfg:      cfg,
		db:       db,
		notifier: notifier,
		registry: registry,
		engine:   engine,
		shutdown: shutdown,
	}, nil
}

// stop closes every live session and releases the backing resources
func (a *app) stop(ctx context.Context) {
	a.registry.CloseAll(ctx, websocketGoingAway, cnst.ReasonServerShutdown)
	if err := a.notifier.Close(); err != nil {
		a.logger.Warn("failed to close presence notifier", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("failed to shutdown tracer provider", zap.Error(err))
	}
}

const websocketGoingAway = 1001

// shutdownServer stops accepting connections and waits for in-flight REST
// requests before live sessions and their backends are closed
func (a *app) shutdownServer(ctx context.Context, srv *http.Server) {
	// hijacked websocket connections are not tracked by Shutdown
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown server", zap.Error(err))
	}
	a.stop(ctx)
}

func run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration from %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("Loaded configuration", zap.String("path", cfgPath))
	lg.Info("Starting messenger", zap.String("version", version.Get()))

	pidFile := utils.NewPIDFile(helper.GetPIDPath(cfg.Server.PID))
	if err := pidFile.Write(); err != nil {
		lg.Fatal("Failed to write PID file", zap.String("path", pidFile.Path()), zap.Error(err))
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			lg.Warn("Failed to remove PID file", zap.Error(err))
		}
	}()

	a, err := newApp(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("Failed to initialize messenger", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: a.engine,
	}

	go func() {
		lg.Info("Listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	lg.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	a.shutdownServer(shutdownCtx, srv)
	lg.Info("Messenger stopped")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
