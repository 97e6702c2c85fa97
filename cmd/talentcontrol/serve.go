package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talentcontrolhr/talentcontrol/internal/account"
	"github.com/talentcontrolhr/talentcontrol/internal/api"
	"github.com/talentcontrolhr/talentcontrol/internal/company"
	"github.com/talentcontrolhr/talentcontrol/internal/metrics"
	"github.com/talentcontrolhr/talentcontrol/internal/ratelimit"
	"github.com/talentcontrolhr/talentcontrol/internal/schedule"
	"github.com/talentcontrolhr/talentcontrol/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the TalentControl API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	m := metrics.New()
	if b.poolStats != nil {
		m.RegisterPoolCollector(cfg.Database.Driver, b.poolStats)
	}

	sessions, err := session.NewManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}

	accounts := account.NewService(b.accounts, logger, cfg.Auth.BcryptCost)
	editor := company.NewEditor(b.companies, accounts, logger, m)
	limiter := ratelimit.New(cfg.RateLimit.Attempts, cfg.RateLimit.Window)
	go sweepLimiter(ctx, limiter, cfg.RateLimit.Window)

	deps := api.RouterDeps{
		Accounts:       accounts,
		Lookup:         account.NewAuthAdapter(b.accounts),
		Sessions:       sessions,
		Cookie:         session.NewCookie(cfg.Auth.CookieName, cfg.IsProduction()),
		Editor:         editor,
		Schedule:       schedule.NewService(b.schedule, editor, logger),
		Limiter:        limiter,
		Metrics:        m,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustProxy:     cfg.Server.TrustProxy,
		Logger:         logger,
	}
	if b.ping != nil {
		deps.DB = b
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "driver", cfg.Database.Driver, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
	case err := <-errCh:
		return err
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

// sweepLimiter drops idle rate-limit buckets once per window until ctx ends.
func sweepLimiter(ctx context.Context, l *ratelimit.Limiter, window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(window); n > 0 {
				slog.Debug("rate limit buckets swept", "count", n)
			}
		}
	}
}
