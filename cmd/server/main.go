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
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bookgraph/internal/auth"
	"bookgraph/internal/config"
	"bookgraph/internal/events"
	"bookgraph/internal/logging"
	"bookgraph/internal/server"
	"bookgraph/internal/store"
)

var (
	configPath string
	flagAddr   string
	flagDB     string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "bookgraph-server",
	Short:         "GraphQL library catalog server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if flagAddr != "" {
			cfg.Server.Addr = flagAddr
		}
		if flagDB != "" {
			cfg.Database.URI = flagDB
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Development)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the GraphQL API and the book feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load authors and books from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return seed(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database URI: mongodb://... or a SQLite file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default :4000)")
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "./data/books.json", "seed JSON file")

	rootCmd.AddCommand(serveCmd, seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ttl, _ := cfg.TokenTTL()

	db, err := store.Open(ctx, cfg.Database.URI, cfg.Database.MongoDatabase)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("store opened", zap.Bool("mongodb", store.IsMongoURI(cfg.Database.URI)))

	tokens, err := auth.NewTokenService([]byte(cfg.Auth.Secret), ttl)
	if err != nil {
		return err
	}

	hub := events.NewHub(logger.Named("feed"))
	defer hub.Close()
	publishers := events.Multi{hub}
	if cfg.Events.AMQPURL != "" {
		amqpPub, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return err
		}
		defer amqpPub.Close()
		publishers = append(publishers, amqpPub)
		logger.Info("publishing book events to amqp", zap.String("exchange", cfg.Events.Exchange))
	}
	if cfg.Events.UDPAddr != "" {
		udp, err := events.ListenUDP(cfg.Events.UDPAddr, logger.Named("udp"))
		if err != nil {
			return err
		}
		defer udp.Close()
		publishers = append(publishers, udp)
	}

	gin.SetMode(cfg.Server.GinMode)
	router, err := server.NewRouter(server.Deps{
		Store:     db,
		Tokens:    tokens,
		Passwords: auth.PasswordChecker{Shared: cfg.Auth.SharedPassword},
		Events:    publishers,
		Hub:       hub,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func seed(ctx context.Context) error {
	if cfg.Database.URI == "" {
		return errors.New("database.uri is required")
	}
	db, err := store.Open(ctx, cfg.Database.URI, cfg.Database.MongoDatabase)
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := store.LoadSeedFromJSON(seedFile)
	if err != nil {
		return err
	}
	n, err := store.Seed(ctx, db, data)
	if err != nil {
		return err
	}
	logger.Info("seeded catalog", zap.Int("books", n), zap.String("file", seedFile))
	return nil
}
