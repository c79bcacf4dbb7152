package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"erisextract/database"
	"erisextract/pipeline"
	"erisextract/server"
)

// newPipeline builds a run over the shared store with the given logger.
func (a *app) newPipeline(logger *slog.Logger) *pipeline.Pipeline {
	return pipeline.New(a.store, a.cfg.Countries(), a.cfg.Pipeline(), logger)
}

func createRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Extract the latest pending report once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.EnsureUploadsSchema(cmd.Context()); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.ExtractTimeout)
			defer cancel()

			report, err := a.newPipeline(a.logger).Run(ctx)
			if errors.Is(err, pipeline.ErrNoPendingFile) {
				color.Yellow("No pending file to extract")
				return nil
			}
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			color.Green("Extraction completed for %s", report.File)
			return nil
		},
	}
}

func createServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP extraction trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.EnsureUploadsSchema(cmd.Context()); err != nil {
				return err
			}

			run := func(ctx context.Context, logger *slog.Logger) (*pipeline.Report, error) {
				return a.newPipeline(logger).Run(ctx)
			}
			srv := server.NewServer(a.cfg, run, a.store.DB().PingContext, a.logger)
			return srv.Start(cmd.Context())
		},
	}
}

func createEnqueueCmd(a *app) *cobra.Command {
	var (
		date   string
		userID int64
	)

	cmd := &cobra.Command{
		Use:   "enqueue <file>",
		Short: "Copy a report into the uploads directory and mark it pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nominal, err := time.Parse(database.DateLayout, date)
			if err != nil {
				return fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", date, err)
			}
			if err := a.store.EnsureUploadsSchema(cmd.Context()); err != nil {
				return err
			}

			dest, size, err := copyToUploads(args[0], a.cfg.UploadsDir)
			if err != nil {
				return err
			}

			id, err := a.store.Register(cmd.Context(), database.Upload{
				UserID:   userID,
				Filename: filepath.Base(dest),
				Filetype: strings.TrimPrefix(strings.ToLower(filepath.Ext(dest)), "."),
				FileSize: humanSize(size),
			}, nominal, time.Now())
			if err != nil {
				return err
			}
			color.Green("Upload %d pending: %s (%s)", id, filepath.Base(dest), nominal.Format(database.DateLayout))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", time.Now().Format(database.DateLayout), "nominal report date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&userID, "user", 1, "id of the uploading user")
	return cmd
}

func createPurgeCmd(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every extracted row stamped with a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.Parse(database.DateLayout, date)
			if err != nil {
				return fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", date, err)
			}

			counts, err := a.store.PurgeDate(cmd.Context(), d, pipeline.Tables)
			if err != nil {
				return err
			}
			printPurge(cmd.OutOrStdout(), counts)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "report date to purge (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func createInitDBCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the upload tracking table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.EnsureUploadsSchema(cmd.Context()); err != nil {
				return err
			}
			color.Green("Database ready (%s)", a.store.Driver())
			return nil
		},
	}
}

// copyToUploads copies src into dir unless it already lives there.
func copyToUploads(src, dir string) (string, int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(src))
	if absSrc, _ := filepath.Abs(src); absSrc != "" {
		if absDest, _ := filepath.Abs(dest); absSrc == absDest {
			return dest, info.Size(), nil
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", 0, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close %s: %w", dest, err)
	}
	return dest, info.Size(), nil
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%dB", n)
	}
}
