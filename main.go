package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	configFile string
	settings   *viper.Viper
	cfg        Config
	log        *Logger
}

func main() {
	loadDotEnv()

	a := &app{}
	if err := a.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quartile_worker",
		Short:         "Per-group quartile and outlier fence summaries",
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			v, err := readSettings(a.configFile)
			if err != nil {
				return err
			}
			a.settings = v
			a.cfg = loadConfig(v)
			a.log, err = newLogger(a.cfg.LogMode)
			return err
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.log != nil {
				a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "optional YAML config file")

	root.AddCommand(a.summarizeCmd(), a.processCmd(), a.serveCmd(), a.enqueueCmd(), a.migrateCmd())
	return root
}

func (a *app) summarizeCmd() *cobra.Command {
	cols := columnSpec{}
	var format string
	cmd := &cobra.Command{
		Use:   "summarize <file.csv>",
		Short: "Summarize a CSV file and print a boxplot report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			observations, err := loadObservationsFile(args[0], cols)
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			rep, err := buildReport(observations, cols)
			if err != nil {
				return err
			}
			a.log.Debug("summarized file", "path", args[0], "observations", len(observations), "groups", len(rep.Groups))
			return writeReport(cmd.OutOrStdout(), rep, format)
		},
	}
	cmd.Flags().StringVar(&cols.Group, "group-column", defaultGroupColumn, "column holding the group label")
	cmd.Flags().StringVar(&cols.Value, "value-column", defaultValueColumn, "numeric column to summarize")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json or yaml")
	return cmd
}

func (a *app) processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <dataset-id>",
		Short: "Summarize one stored dataset and persist the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDatasetID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, closeDB, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeDB()
			w := &worker{store: store, log: a.log, metrics: newWorkerMetrics()}
			return w.processDataset(ctx, id)
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume dataset jobs from the Redis queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, closeDB, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeDB()
			if err := store.ensureSchema(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}

			metrics := newWorkerMetrics()
			serveMetrics(ctx, a.log, metrics.registry, a.cfg.MetricsPort)

			w := &worker{store: store, log: a.log.With("queue", a.cfg.Queue), metrics: metrics}
			a.log.Info("worker started", "queue", queueKeyPrefix+a.cfg.Queue)
			return w.runService(ctx, func(ctx context.Context) (jobQueue, func(), error) {
				q, err := newRedisQueue(ctx, a.cfg.RedisURL, a.cfg.Queue)
				if err != nil {
					return nil, nil, err
				}
				return q, func() { _ = q.Close() }, nil
			})
		},
	}
}

func (a *app) enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <dataset-id>",
		Short: "Push a summarize job for a dataset onto the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDatasetID(args[0])
			if err != nil {
				return err
			}
			q, err := newRedisQueue(cmd.Context(), a.cfg.RedisURL, a.cfg.Queue)
			if err != nil {
				return err
			}
			defer q.Close()
			payload, err := encodeJob(a.cfg.Queue, id, time.Now())
			if err != nil {
				return err
			}
			if err := q.push(cmd.Context(), payload); err != nil {
				return fmt.Errorf("enqueue: %w", err)
			}
			a.log.Info("enqueued dataset", "dataset_id", id, "queue", q.key)
			return nil
		},
	}
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the dataset and summary tables if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeDB, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			return store.ensureSchema(cmd.Context())
		},
	}
}

func (a *app) openStore(ctx context.Context) (*pgStore, func(), error) {
	dsn, err := buildDSN(a.settings)
	if err != nil {
		return nil, nil, fmt.Errorf("database config error: %w", err)
	}
	db, err := openPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return newPGStore(db, a.cfg.FetchBatchSize), func() { db.Close() }, nil
}

func parseDatasetID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid dataset id %q", s)
	}
	return id, nil
}
