// printctl is the operator CLI for the print shop backend: it runs the
// close-out, toggles the shop, and prints queue and summary figures
// straight from the configured store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"printdesk/backend/internal/config"
	"printdesk/backend/internal/filestore"
	"printdesk/backend/internal/queue"
	"printdesk/backend/internal/service"
	"printdesk/backend/internal/store"
	"printdesk/backend/internal/store/memory"
	pgstore "printdesk/backend/internal/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "printctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "printctl",
		Short:        "Print shop operations CLI",
		Long:         `printctl talks directly to the configured store: run the end-of-day close-out, open or close the shop, and inspect queue and summary figures.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newEODCmd(),
		newEnqueueEODCmd(),
		newShopCmd(),
		newStatsCmd(),
		newSummaryCmd(),
	)
	return cmd
}

// buildService wires a service against the configured store. The CLI
// shares DATABASE_URL and MinIO settings with the server processes.
func buildService(ctx context.Context) (*service.Service, func(), error) {
	cfg := config.Load()
	cleanup := func() {}

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, cleanup, fmt.Errorf("ensure schema: %w", err)
		}
		repo = pg
		cleanup = func() { pg.Close() }
	} else {
		fmt.Fprintln(os.Stderr, "printctl: DATABASE_URL not set, using an empty in-memory store")
		repo = memory.New()
	}

	var files filestore.FileStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := filestore.NewMinIO(filestore.MinIOConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("minio: %w", err)
		}
		files = minioStore
	} else {
		files = filestore.NewMemory()
	}

	return service.New(repo, files, nil), cleanup, nil
}

func newEODCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "eod",
		Short: "Run the end-of-day close-out now",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := buildService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.RunEndOfDay(service.SystemContext(cmd.Context()), date)
			if err != nil {
				return err
			}

			fmt.Printf("close-out %s: archived %d orders, %d documents, %d cents income\n",
				result.Date, result.ArchivedGroups, result.DocsCount, result.IncomeCents)
			for _, failure := range result.Failures {
				fmt.Printf("  cleanup issue: %s\n", failure)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Close-out date (yyyy-mm-dd, default today)")
	return cmd
}

func newEnqueueEODCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "enqueue-eod",
		Short: "Queue the end-of-day close-out for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.RedisAddr == "" {
				return fmt.Errorf("REDIS_ADDR must be set to enqueue tasks")
			}

			client := asynq.NewClient(asynq.RedisClientOpt{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := queue.EnqueueEndOfDay(ctx, client, queue.EODPayload{Date: date}); err != nil {
				return err
			}
			fmt.Println("end-of-day task enqueued")
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Close-out date (yyyy-mm-dd, default today)")
	return cmd
}

func newShopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shop",
		Short: "Open, close, or inspect the shop",
	}
	cmd.AddCommand(
		newShopToggleCmd("open", true),
		newShopToggleCmd("close", false),
		newShopStatusCmd(),
	)
	return cmd
}

func newShopToggleCmd(name string, open bool) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Mark the shop as %s", map[bool]string{true: "open", false: "closed"}[open]),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := buildService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			status, err := svc.SetShopOpen(service.SystemContext(cmd.Context()), open)
			if err != nil {
				return err
			}
			fmt.Printf("shop open=%t (as of %s)\n", status.Open, status.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newShopStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the shop is accepting orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := buildService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			status, err := svc.ShopStatus(cmd.Context())
			if err != nil {
				return err
			}
			state := "closed"
			if status.Open {
				state = "open"
			}
			fmt.Printf("shop is %s (as of %s)\n", state, status.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show live queue totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := buildService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := svc.DashboardStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("jobs: %d total, %d pending\n", stats.TotalJobs, stats.PendingJobs)
			fmt.Printf("orders today: %d\n", stats.TodayOrders)
			fmt.Printf("queued revenue: %d cents\n", stats.TotalRevenueCents)
			return nil
		},
	}
}

func newSummaryCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the archived daily summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := buildService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := svc.GetDailySummary(cmd.Context(), date)
			if err != nil {
				return err
			}
			fmt.Printf("summary %s: %d customers, %d documents, %d cents income\n",
				summary.Date, summary.TotalCustomers, summary.TotalDocs, summary.TotalIncomeCents)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Summary date (yyyy-mm-dd, default today)")
	return cmd
}
