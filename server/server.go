// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server lifecycle and the single dispatch loop.

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/ackd/api"
	"github.com/momentics/ackd/control"
	"github.com/momentics/ackd/internal/appendlog"
	"github.com/momentics/ackd/internal/conntable"
	"github.com/momentics/ackd/internal/logging"
	"github.com/momentics/ackd/protocol"
	"github.com/momentics/ackd/reactor"
)

// Name identifies the service in diagnostics.
const Name = "ackd"

// Version is overridden at link time with -ldflags "-X".
var Version = "0.1.0"

var ErrAlreadyRunning = errors.New("server already running")

var _ api.GracefulShutdown = (*Server)(nil)

// Server accepts connections, persists their messages and acknowledges
// them after the configured delay.
type Server struct {
	cfg     *Config
	metrics *control.MetricsRegistry
	logger  *zap.Logger

	mu      sync.Mutex
	started bool
	reactor reactor.Reactor
	addr    string
	logPath string
	info    api.ServiceInfo

	stopping atomic.Bool
	ready    chan struct{}
	done     chan struct{}
}

// NewServer builds a server from cfg (DefaultConfig when nil) and opts.
func NewServer(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	s := &Server{
		cfg:   &c,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if s.metrics == nil {
		s.metrics = control.NewMetricsRegistry()
	}
	if s.logger != nil {
		logging.SetLogger(s.logger)
	}
	return s, nil
}

// Start listens on port and serves until Shutdown.
func (s *Server) Start(port int) error {
	s.cfg.Port = port
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	return s.Run(context.Background())
}

// Run serves until ctx is canceled or Shutdown is called. Startup failures
// are returned wrapped; the dispatch loop only fails if the reactor does.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.started = true
	s.mu.Unlock()
	defer close(s.done)

	lfd, port, err := listen(s.cfg.Host, s.cfg.Port, s.cfg.Backlog)
	if err != nil {
		return s.startupFailed("listen", err)
	}
	log, err := appendlog.Open(appendlog.PathFor(s.cfg.LogDir, port))
	if err != nil {
		closeFd(lfd)
		return s.startupFailed("open log", err)
	}
	r, err := reactor.New(s.cfg.QueueDepth)
	if err != nil {
		log.Close()
		closeFd(lfd)
		return s.startupFailed("reactor", err)
	}

	table := conntable.New(s.cfg.MaxConnections)
	m := protocol.New(r, table, log, s.metrics, protocol.Config{
		ListenFd: lfd,
		AckDelay: s.cfg.AckDelay,
	})
	if err := m.Arm(); err != nil {
		r.Close()
		log.Close()
		closeFd(lfd)
		return s.startupFailed("arm accept", err)
	}

	host := s.cfg.Host
	if host == "" {
		host = "0.0.0.0"
	}
	s.mu.Lock()
	s.reactor = r
	s.addr = net.JoinHostPort(host, strconv.Itoa(port))
	s.logPath = log.Path()
	s.info = api.ServiceInfo{Name: Name, Version: Version, StartedAt: time.Now()}
	s.mu.Unlock()

	logging.Info("Server started",
		zap.String("addr", s.addr),
		zap.String("log_file", log.Path()),
		zap.Int("max_message_len", api.MaxMessageLen),
		zap.Int("max_connections", s.cfg.MaxConnections),
		zap.Duration("ack_delay", s.cfg.AckDelay),
		zap.Int("queue_depth", s.cfg.QueueDepth),
	)
	close(s.ready)

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Shutdown()
			case <-s.done:
			}
		}()
	}

	loopErr := s.dispatch(r, m, table)

	m.Shutdown()
	s.drain(r, m)
	if err := r.Release(lfd); err != nil {
		logging.Warn("Close listener", zap.Error(err))
	}
	if err := log.Close(); err != nil {
		logging.Warn("Close log", zap.Error(err))
	}
	s.mu.Lock()
	s.reactor = nil
	s.mu.Unlock()
	if err := r.Close(); err != nil {
		logging.Warn("Close reactor", zap.Error(err))
	}
	s.publish(table, r)
	logging.Info("Server stopped", zap.String("addr", s.addr))
	logging.Sync()
	return loopErr
}

// dispatch drains completions in batches and feeds them to the machine.
func (s *Server) dispatch(r reactor.Reactor, m *protocol.Machine, table *conntable.Table) error {
	batch := make([]api.Completion, s.cfg.BatchSize)
	for !s.stopping.Load() {
		n, err := r.Wait(batch)
		if err != nil {
			logging.Error("Reactor wait failed", zap.Error(err))
			return fmt.Errorf("reactor wait: %w", err)
		}
		for i := 0; i < n; i++ {
			m.Handle(batch[i])
			batch[i] = api.Completion{}
		}
		m.Flush()
		s.publish(table, r)
	}
	return nil
}

// drain runs the operations still queued after the loop stopped so every
// received message reaches the log before it is closed.
func (s *Server) drain(r reactor.Reactor, m *protocol.Machine) {
	batch := make([]api.Completion, s.cfg.BatchSize)
	for {
		m.Flush()
		n, err := r.Poll(batch)
		if err != nil {
			logging.Warn("Drain reactor", zap.Error(err))
			return
		}
		for i := 0; i < n; i++ {
			m.Handle(batch[i])
			batch[i] = api.Completion{}
		}
		if n == 0 {
			break
		}
	}
	if d := m.Deferred(); d > 0 {
		logging.Warn("Operations dropped at shutdown", zap.Int("deferred", d))
	}
}

func (s *Server) publish(table *conntable.Table, r reactor.Reactor) {
	s.metrics.Set(control.MetricActive, int64(table.Len()))
	s.metrics.Set(control.MetricInflight, int64(r.Inflight()))
}

func (s *Server) startupFailed(stage string, err error) error {
	logging.Error("Startup failed",
		zap.String("stage", stage),
		zap.Int("port", s.cfg.Port),
		zap.Error(err),
	)
	return fmt.Errorf("%s: %w", stage, err)
}

// Shutdown stops the dispatch loop and waits for Run to release every
// resource. It is safe to call more than once and from any goroutine.
func (s *Server) Shutdown() error {
	s.stopping.Store(true)
	s.mu.Lock()
	r, started := s.reactor, s.started
	s.mu.Unlock()
	if r != nil {
		if err := r.Wake(); err != nil && !errors.Is(err, api.ErrClosed) {
			logging.Warn("Wake dispatch loop", zap.Error(err))
		}
	}
	if started {
		<-s.done
	}
	return nil
}

// Ready is closed once the server accepts connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Done is closed when Run returns.
func (s *Server) Done() <-chan struct{} { return s.done }

// Addr returns the bound host:port, empty before Ready.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Port returns the bound port, 0 before Ready.
func (s *Server) Port() int {
	_, p, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(p)
	return port
}

// LogPath returns the output file path, empty before Ready.
func (s *Server) LogPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logPath
}

// Info describes the running service.
func (s *Server) Info() api.ServiceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Metrics returns a snapshot of the server counters.
func (s *Server) Metrics() map[string]any {
	return s.metrics.GetSnapshot()
}

// Registry exposes the live metrics registry.
func (s *Server) Registry() *control.MetricsRegistry {
	return s.metrics
}
