// Package runner starts and stops an application server backed by a
// document database, for integration tests.
//
//	r, err := runner.Start(ctx, runner.Options{Port: 30002})
//	if err != nil { ... }
//	defer r.Stop(ctx)
//	// talk to r.URL()
//	_ = r.DropDatabase(ctx)
//
// Each Start returns its own handle. There is no process-wide state, so
// runners on different ports can run side by side.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/shashiranjanraj/testserver/config"
	"github.com/shashiranjanraj/testserver/internal/server"
	"github.com/shashiranjanraj/testserver/pkg/appserver"
	"github.com/shashiranjanraj/testserver/pkg/docstore"
	"github.com/shashiranjanraj/testserver/pkg/logger"
	"github.com/shashiranjanraj/testserver/pkg/metrics"
	"github.com/shashiranjanraj/testserver/pkg/router"
)

// State holds every live handle of a running runner. The zero State means
// not running.
type State struct {
	Server http.Handler
	Router *router.Router
	Addr   net.Addr
	Conn   Conn
	Config appserver.Config
}

// Empty reports whether s holds no handles.
func (s State) Empty() bool {
	return s.Server == nil && s.Router == nil && s.Addr == nil && s.Conn == nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type purger interface {
	Purge(ctx context.Context) error
}

// Runner is a started application server. The zero value and nil are valid
// "not running" runners.
type Runner struct {
	mu              sync.Mutex
	state           State
	listener        *server.Server
	timeouts        Timeouts
	closeConnection bool
	log             *slog.Logger
}

// Start connects to the database, constructs the application server, mounts
// it at the mount path and binds the listener. It returns once the listener
// accepts connections. On failure nothing stays acquired.
func Start(ctx context.Context, opts Options) (r *Runner, err error) {
	begin := time.Now()
	defer func() { metrics.ObserveOperation("start", resultLabel(err), begin) }()

	cfg := Resolve(opts)
	timeouts := opts.Timeouts.withDefaults(config.Timeout())

	log := opts.Logger
	if log == nil {
		log = logger.L
	}
	connector := opts.Connector
	if connector == nil {
		connector = MongoConnector(docstore.Connector{})
	}
	newServer := opts.NewServer
	if newServer == nil {
		newServer = appserver.Factory
	}

	conn, err := bounded(ctx, "connect", timeouts.Connect,
		func(ctx context.Context) (Conn, error) { return connector.Connect(ctx, cfg.DatabaseURI) },
		func(c Conn) { _ = c.Disconnect(context.Background()) },
	)
	if err == nil && conn == nil {
		err = errors.New("connector returned no connection")
	}
	if err != nil {
		return nil, &OpError{Op: "connect", Err: err}
	}

	srv, err := newServer(ctx, cfg)
	if err == nil && srv == nil {
		err = errors.New("server factory returned no handler")
	}
	if err != nil {
		rollback(timeouts, nil, conn)
		return nil, &OpError{Op: "construct", Err: err}
	}

	rt := router.New()
	if opts.ExposeMetrics {
		rt.Get("/metrics", "metrics", metrics.Handler())
	}
	if err := rt.Mount(cfg.MountPath, srv); err != nil {
		rollback(timeouts, srv, conn)
		return nil, &OpError{Op: "mount", Err: err}
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(cfg.Port))
	listener, err := bounded(ctx, "bind", timeouts.Bind,
		func(ctx context.Context) (*server.Server, error) { return server.Listen(ctx, addr, rt, log) },
		func(s *server.Server) { _ = s.Shutdown(context.Background()) },
	)
	if err != nil {
		rollback(timeouts, srv, conn)
		return nil, &OpError{Op: "bind", Err: err}
	}

	r = &Runner{
		state: State{
			Server: srv,
			Router: rt,
			Addr:   listener.Addr(),
			Conn:   conn,
			Config: cfg,
		},
		listener:        listener,
		timeouts:        timeouts,
		closeConnection: opts.CloseConnection,
		log:             log,
	}
	metrics.Running.Inc()
	log.Info("runner started",
		"url", cfg.ServerURL,
		"addr", listener.Addr().String(),
		"database", cfg.DatabaseName,
	)
	return r, nil
}

// rollback releases what a failed Start acquired, newest first. Errors are
// dropped; the caller reports the error that caused the rollback.
func rollback(t Timeouts, srv http.Handler, conn Conn) {
	if sd, ok := srv.(shutdowner); ok {
		_, _ = bounded(context.Background(), "shutdown", t.Close,
			func(ctx context.Context) (struct{}, error) { return struct{}{}, sd.Shutdown(ctx) }, nil)
	}
	if conn != nil {
		_, _ = bounded(context.Background(), "disconnect", t.Close,
			func(ctx context.Context) (struct{}, error) { return struct{}{}, conn.Disconnect(ctx) }, nil)
	}
}

// Stop closes the listener and clears the state. The port is released even
// when the close deadline passes; in-flight requests are then cut off and a
// timeout error is returned. The application server is shut down if it
// supports it. The database connection is disconnected only with
// Options.CloseConnection.
func (r *Runner) Stop(ctx context.Context) (err error) {
	if r == nil {
		return ErrNotRunning
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listener == nil {
		return ErrNotRunning
	}

	begin := time.Now()
	defer func() { metrics.ObserveOperation("stop", resultLabel(err), begin) }()

	var errs []error

	cctx, cancel := context.WithTimeout(ctx, r.timeouts.Close)
	closeErr := r.listener.Shutdown(cctx)
	cancel()
	if closeErr != nil {
		if ctx.Err() == nil && errors.Is(closeErr, context.DeadlineExceeded) {
			closeErr = &TimeoutError{Op: "close", After: r.timeouts.Close, Err: closeErr}
		}
		errs = append(errs, &OpError{Op: "close", Err: closeErr})
	}

	if sd, ok := r.state.Server.(shutdowner); ok {
		_, err := bounded(ctx, "shutdown", r.timeouts.Close,
			func(ctx context.Context) (struct{}, error) { return struct{}{}, sd.Shutdown(ctx) }, nil)
		if err != nil {
			errs = append(errs, &OpError{Op: "shutdown", Err: err})
		}
	}

	if r.closeConnection {
		conn := r.state.Conn
		_, err := bounded(ctx, "disconnect", r.timeouts.Close,
			func(ctx context.Context) (struct{}, error) { return struct{}{}, conn.Disconnect(ctx) }, nil)
		if err != nil {
			errs = append(errs, &OpError{Op: "disconnect", Err: err})
		}
	}

	url := r.state.Config.ServerURL
	r.state = State{}
	r.listener = nil
	metrics.Running.Dec()

	err = errors.Join(errs...)
	if err != nil {
		r.log.Warn("runner stopped with errors", "url", url, "error", err)
		return err
	}
	r.log.Info("runner stopped", "url", url)
	return nil
}

// DropDatabase drops the database behind the current connection, then
// purges the application server's cache when it has one. Irreversible.
func (r *Runner) DropDatabase(ctx context.Context) (err error) {
	if r == nil {
		return ErrNotRunning
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	conn := r.state.Conn
	if conn == nil {
		return ErrNotRunning
	}

	begin := time.Now()
	defer func() { metrics.ObserveOperation("drop", resultLabel(err), begin) }()

	_, err = bounded(ctx, "drop", r.timeouts.Drop,
		func(ctx context.Context) (struct{}, error) { return struct{}{}, conn.DropDatabase(ctx) }, nil)
	if err != nil {
		return &OpError{Op: "drop", Err: err}
	}

	if p, ok := r.state.Server.(purger); ok {
		if err := p.Purge(ctx); err != nil {
			return &OpError{Op: "purge", Err: err}
		}
	}

	r.log.Info("database dropped", "database", r.state.Config.DatabaseName)
	return nil
}

// State returns a copy of the live handles, or the zero State when the
// runner is not running.
func (r *Runner) State() State {
	if r == nil {
		return State{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Running reports whether the listener is up.
func (r *Runner) Running() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listener != nil
}

// Config returns the resolved configuration the runner was started with.
func (r *Runner) Config() appserver.Config { return r.State().Config }

// URL is the server URL clients should use (ServerURL).
func (r *Runner) URL() string { return r.State().Config.ServerURL }

// Addr is the bound listener address, or nil when not running.
func (r *Runner) Addr() net.Addr { return r.State().Addr }

func (r *Runner) String() string {
	st := r.State()
	if st.Empty() {
		return "runner(stopped)"
	}
	return fmt.Sprintf("runner(%s, db=%s)", st.Config.ServerURL, st.Config.DatabaseName)
}
