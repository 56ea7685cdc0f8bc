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

	"github.com/fzkn4/gate-security/internal/api"
	"github.com/fzkn4/gate-security/internal/config"
	"github.com/fzkn4/gate-security/internal/repository"
	"github.com/fzkn4/gate-security/internal/repository/memory"
	"github.com/fzkn4/gate-security/internal/scancode"
	"github.com/fzkn4/gate-security/internal/service"
	"github.com/fzkn4/gate-security/internal/session"
	"github.com/fzkn4/gate-security/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	root := &cli.Command{
		Name:  "gate",
		Usage: "Vehicle gate access server",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			setupAdminCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx)
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := config.SetupDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			log.Info("migrations applied")
			return nil
		},
	}
}

func setupAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup-admin",
		Usage: "Create the first admin account if none exists",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "login", Usage: "admin username (default BOOTSTRAP_ADMIN_USERNAME)"},
			&cli.StringFlag{Name: "email", Usage: "admin email (default BOOTSTRAP_ADMIN_EMAIL)"},
			&cli.StringFlag{Name: "password", Usage: "initial password; generated and logged when empty"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if v := cmd.String("login"); v != "" {
				cfg.Auth.BootstrapLogin = v
			}
			if v := cmd.String("email"); v != "" {
				cfg.Auth.BootstrapEmail = v
			}
			if v := cmd.String("password"); v != "" {
				cfg.Auth.BootstrapPassword = v
			}

			svc, cleanup, err := buildService(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			admin, err := svc.EnsureBootstrapAdmin(ctx, cfg.Auth.BootstrapLogin, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword)
			if err != nil {
				return err
			}
			if admin == nil {
				fmt.Println("an admin account already exists; nothing to do")
				return nil
			}
			fmt.Printf("created admin %q (id %d); change the password on first login\n", admin.Login, admin.ID)
			return nil
		},
	}
}

// loadConfig reads and validates the configuration and builds the logger
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, utils.NewLogger(cfg.Log.Level, cfg.Log.Format), nil
}

// buildService opens the configured store and revocation list and wires the
// service over them. cleanup closes every connection it opened.
func buildService(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*service.DefaultService, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	var repo repository.Repository
	switch cfg.Store.Driver {
	case "memory":
		log.Warn("using in-memory store; data is lost on exit")
		repo = memory.New()
	default:
		db, err := config.SetupDatabase(ctx, cfg)
		if err != nil {
			return nil, func() {}, err
		}
		closers = append(closers, db.Close)
		repo = repository.NewPostgresRepository(db, cfg.Store.Timeout)
	}

	var revoker session.Revoker
	if cfg.Redis.Addr != "" {
		rdb, err := config.SetupRedis(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, rdb.Close)
		revoker = session.NewRedisRevoker(rdb)
	} else {
		revoker = session.NewMemoryRevoker()
	}

	statsLocation, err := cfg.Gate.StatsLocation()
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	svc := service.NewDefaultService(repo, scancode.NewQREncoder(cfg.Gate.QRSize), revoker, service.Options{
		JWTSecret:       cfg.Auth.JWTSecret,
		TokenTTL:        cfg.Auth.TokenTTL,
		DefaultLocation: cfg.Gate.DefaultLocation,
		StatsLocation:   statsLocation,
		Logger:          log,
	})
	return svc, cleanup, nil
}

func runServer(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := svc.EnsureBootstrapAdmin(ctx, cfg.Auth.BootstrapLogin, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword); err != nil {
		return err
	}

	// Set up Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.NewHandler(svc, log).SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
