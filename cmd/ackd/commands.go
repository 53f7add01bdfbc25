package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/momentics/ackd/api"
	"github.com/momentics/ackd/client"
	"github.com/momentics/ackd/internal/logging"
	"github.com/momentics/ackd/internal/settings"
	"github.com/momentics/ackd/server"
)

// Serve command and flags
var (
	configPath string
	logLevel   string
	diagFile   string
	logDir     string
	host       string
	maxConns   int
	ackDelay   time.Duration
	queueDepth int
)

var serveCmd = &cobra.Command{
	Use:   "serve [port]",
	Short: "Start the server",
	Long: `Start accepting connections on the given port.

Without a port argument the port is read from the settings file (key "port",
overridable with ACKD_PORT). Tuning flags override the [server] section of the
settings file.`,
	Example: `  # Listen on 9000, output to ./9000.txt
  ackd serve 9000

  # Reuse the port from the last run
  ackd serve

  # Short delay and verbose diagnostics
  ackd serve 9000 --ack-delay 500ms --log-level debug`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Settings file (default <binary>.conf)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); empty reads "+logging.LogLevelEnvVar)
	serveCmd.Flags().StringVar(&diagFile, "diag-file", logging.DefaultDiagPath(), "Diagnostics file, cleared at startup (empty = stderr only)")
	serveCmd.Flags().StringVar(&logDir, "log-dir", "", "Directory for <port>.txt (default current directory)")
	serveCmd.Flags().StringVar(&host, "host", "", "IPv4 bind address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&maxConns, "max-conns", 0, "Connection limit (default 100)")
	serveCmd.Flags().DurationVar(&ackDelay, "ack-delay", 0, "Delay before acknowledging (default 3s)")
	serveCmd.Flags().IntVar(&queueDepth, "queue-depth", 0, "In-flight reactor operations (default 4096)")
}

func runServe(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = settings.DefaultPath()
	}
	st, err := settings.Load(path)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return err
	}

	level := logLevel
	if level == "" {
		level = st.Log.Level
	}
	if err := logging.InitializeWithFile(level, diagFile); err != nil {
		return err
	}
	defer logging.Sync()

	port, err := resolvePort(args, st)
	if err != nil {
		logging.Error("No port configured", zap.String("settings", path), zap.Error(err))
		return err
	}

	cfg := server.DefaultConfig()
	st.Apply(cfg)
	cfg.Port = port
	if logDir != "" {
		cfg.LogDir = logDir
	}
	if host != "" {
		cfg.Host = host
	}
	var opts []server.Option
	if maxConns > 0 {
		opts = append(opts, server.WithMaxConnections(maxConns))
	}
	if ackDelay > 0 {
		opts = append(opts, server.WithAckDelay(ackDelay))
	}
	if queueDepth > 0 {
		opts = append(opts, server.WithQueueDepth(queueDepth))
	}

	srv, err := server.NewServer(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := settings.SavePort(path, port); err != nil {
		logging.Warn("Settings not saved", zap.String("settings", path), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "portno= %d\n", port)
	return srv.Run(ctx)
}

// resolvePort takes the port from the first argument, falling back to the
// settings file.
func resolvePort(args []string, st *settings.Settings) (int, error) {
	if len(args) > 0 {
		p, err := strconv.Atoi(args[0])
		if err != nil || p <= 0 || p > 65535 {
			return 0, fmt.Errorf("invalid port %q: %w", args[0], api.ErrInvalidArgument)
		}
		return p, nil
	}
	if st == nil || st.General.Port <= 0 {
		return 0, fmt.Errorf("port not given and not found in settings: %w", api.ErrNotFound)
	}
	return st.General.Port, nil
}

// Probe command and flags
var (
	probeAddr    string
	probeClients int
	probeMessage string
	probeTimeout time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send one message from N concurrent clients and report ack latency",
	Example: `  # Two clients, expect both acks in about 3 seconds
  ackd probe --addr 127.0.0.1:9000 --clients 2 --message hello`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeAddr, "addr", "127.0.0.1:9000", "Server address")
	probeCmd.Flags().IntVar(&probeClients, "clients", 1, "Number of concurrent clients")
	probeCmd.Flags().StringVar(&probeMessage, "message", "hello", "Message to send (at most 128 bytes)")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 30*time.Second, "Overall deadline")
}

func runProbe(cmd *cobra.Command, args []string) error {
	if probeClients <= 0 {
		return fmt.Errorf("--clients must be positive: %w", api.ErrInvalidArgument)
	}
	if len(probeMessage) == 0 || len(probeMessage) > api.MaxMessageLen {
		return fmt.Errorf("--message must be 1..%d bytes: %w", api.MaxMessageLen, api.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
	defer cancel()

	cfg := client.DefaultConfig(probeAddr)
	cfg.ReadTimeout = probeTimeout
	rep := client.Probe(ctx, cfg, probeClients, []byte(probeMessage))

	out := cmd.OutOrStdout()
	for _, r := range rep.Results {
		if r.Err != nil {
			fmt.Fprintf(out, "client %d: error: %v\n", r.ID, r.Err)
			continue
		}
		fmt.Fprintf(out, "client %d: %q after %v\n", r.ID, r.Ack.Line, r.Ack.Latency.Round(time.Millisecond))
	}
	fmt.Fprintf(out, "ok=%d failed=%d min=%v median=%v max=%v total=%v\n",
		rep.OK, rep.Failed,
		rep.Min.Round(time.Millisecond), rep.Median.Round(time.Millisecond),
		rep.Max.Round(time.Millisecond), rep.Elapsed.Round(time.Millisecond))
	if rep.Failed > 0 {
		return fmt.Errorf("%d of %d clients failed", rep.Failed, probeClients)
	}
	return nil
}
