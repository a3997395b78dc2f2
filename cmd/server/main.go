package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"goredis/internal/config"
	"goredis/internal/logging"
	"goredis/internal/metrics"
	"goredis/internal/replication"
	"goredis/internal/server"
	"goredis/internal/snapshot"
	"goredis/internal/store"
)

var (
	flagPort        int
	flagDir         string
	flagDBFilename  string
	flagMetricsAddr string
	flagLogLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "goredis-server",
	Short: "RESP key-value server with string/stream values and replication",
	// --replicaof takes two bare tokens ("host port"), not one flag
	// value, so cobra's own flag parsing is off: preScanReplicaOf below
	// pulls that flag out by hand and passes the rest to pflag
	// (spec.md §6).
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(preScanReplicaOf(os.Args[1:]))
	},
}

func init() {
	rootCmd.Flags().IntVar(&flagPort, "port", 6379, "port to listen on")
	rootCmd.Flags().StringVar(&flagDir, "dir", "", "directory containing the snapshot file")
	rootCmd.Flags().StringVar(&flagDBFilename, "dbfilename", "", "snapshot file name")
	rootCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "address to serve /metrics on (empty disables)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "debug|info|warn|error")
}

// preScanReplicaOf pulls "--replicaof host port" out of the raw argv
// by hand, since it's the one flag that consumes two bare tokens, then
// hands the remainder to pflag for normal parsing.
func preScanReplicaOf(argv []string) *config.ReplicaOf {
	rest := make([]string, 0, len(argv))
	var ro *config.ReplicaOf
	for i := 0; i < len(argv); i++ {
		if argv[i] == "--replicaof" && i+2 < len(argv) {
			port, err := strconv.Atoi(argv[i+2])
			if err == nil {
				ro = &config.ReplicaOf{Host: argv[i+1], Port: port}
			}
			i += 2
			continue
		}
		rest = append(rest, argv[i])
	}
	rootCmd.Flags().Parse(rest)
	return ro
}

func run(replicaOf *config.ReplicaOf) error {
	cfg := config.Default()
	cfg.Port = flagPort
	cfg.Dir = flagDir
	cfg.DBFilename = flagDBFilename
	cfg.MetricsAddr = flagMetricsAddr
	cfg.LogLevel = flagLogLevel
	cfg.ReplicaOf = replicaOf

	log := logging.New(logging.Options{Level: cfg.LogLevel})
	defer log.Sync()

	ks := store.NewKeyspace()
	if path := cfg.SnapshotPath(); path != "" {
		if err := snapshot.Load(path, ks, log); err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
	}

	repl := replication.NewManager(cfg.IsReplica(), log)

	var metric *metrics.Registry
	if cfg.MetricsAddr != "" {
		metric = metrics.NewRegistry()
		go func() {
			if err := metric.Serve(cfg.MetricsAddr); err != nil {
				log.Warnw("metrics server stopped", "error", err)
			}
		}()
	}

	srv := server.New(cfg, ks, repl, metric, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.RunExpirationSweep(ctx, ks, metric, log)

	if cfg.IsReplica() {
		conn, leftover, err := replication.DialMaster(cfg.ReplicaOf.Host, cfg.ReplicaOf.Port, cfg.Port, log)
		if err != nil {
			return fmt.Errorf("replica handshake with %s:%d: %w", cfg.ReplicaOf.Host, cfg.ReplicaOf.Port, err)
		}
		go server.RunReplicaStream(conn, leftover, ks, repl, cfg, metric, srv.Dispatcher(), log)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	log.Infow("starting goredis-server", "port", cfg.Port, "role", repl.Role().String())
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
