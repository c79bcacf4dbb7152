package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"erisextract/database"
	"erisextract/internal/config"
)

// app is what every subcommand shares: configuration, logger and store.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *database.Store
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "extractor",
		Short:         "ERIS inspection report extraction",
		Long:          `Loads the latest pending ERIS report into the database and fills cost-center codes in the HSE invariants registry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	rootCmd.AddCommand(createRunCmd(a))
	rootCmd.AddCommand(createServeCmd(a))
	rootCmd.AddCommand(createEnqueueCmd(a))
	rootCmd.AddCommand(createPurgeCmd(a))
	rootCmd.AddCommand(createInitDBCmd(a))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := database.Open(ctx, cfg.DB(), a.logger)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
