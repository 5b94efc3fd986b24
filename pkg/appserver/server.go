// Package appserver is the default application server the runner mounts.
//
// It is a deliberately small document API: objects grouped in classes, stored
// in MongoDB, guarded by application keys. It exists so a runner works out of
// the box; anything that satisfies http.Handler can be mounted instead.
//
// Routes, relative to the mount path:
//
//	GET    /health
//	POST   /classes/{class}
//	GET    /classes/{class}?where={json}&limit=n
//	GET    /classes/{class}/{id}
//	PUT    /classes/{class}/{id}
//	DELETE /classes/{class}/{id}
//	DELETE /classes/{class}          (master key)
package appserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/shashiranjanraj/testserver/pkg/cache"
	"github.com/shashiranjanraj/testserver/pkg/docstore"
	"github.com/shashiranjanraj/testserver/pkg/logger"
	"github.com/shashiranjanraj/testserver/pkg/metrics"
	"github.com/shashiranjanraj/testserver/pkg/middleware"
	"github.com/shashiranjanraj/testserver/pkg/router"
)

// Extra keys understood by New.
const (
	ExtraCacheURL      = "cacheURL"
	ExtraLogCollection = "logCollection"
)

// Config is the merged configuration a server is constructed from.
type Config struct {
	DatabaseName  string
	DatabaseURI   string
	MasterKey     string
	JavaScriptKey string
	AppID         string
	Port          int
	MountPath     string
	ServerURL     string
	Silent        bool

	// Extra holds caller options this package may not know about. They are
	// passed through untouched.
	Extra map[string]interface{}
}

// ExtraString returns Extra[key] when it is a non-empty string.
func (c Config) ExtraString(key string) string {
	s, _ := c.Extra[key].(string)
	return s
}

// Store is what the server needs from a document store.
type Store interface {
	Create(ctx context.Context, class string, fields docstore.Object) (docstore.Object, error)
	Get(ctx context.Context, class, id string) (docstore.Object, error)
	Find(ctx context.Context, class string, where docstore.Object, limit int64) ([]docstore.Object, error)
	Update(ctx context.Context, class, id string, fields docstore.Object) (docstore.Object, error)
	Delete(ctx context.Context, class, id string) error
	DropClass(ctx context.Context, class string) error
}

// Server is an http.Handler. Shutdown releases what New opened.
type Server struct {
	cfg     Config
	store   Store
	cache   *cache.Cache
	log     *slog.Logger
	handler http.Handler

	conn     *docstore.Conn
	logSink  *logger.MongoHandler
	ownCache bool

	closeOnce sync.Once
	closeErr  error
}

type Option func(*buildOptions)

type buildOptions struct {
	store     Store
	cache     *cache.Cache
	log       *slog.Logger
	connector docstore.Connector
}

// WithStore skips the MongoDB connection and serves from s.
func WithStore(s Store) Option { return func(o *buildOptions) { o.store = s } }

// WithCache uses c instead of opening one from the cacheURL extra. The
// caller keeps ownership of c.
func WithCache(c *cache.Cache) Option { return func(o *buildOptions) { o.cache = c } }

// WithLogger sets the base logger for non-silent servers.
func WithLogger(l *slog.Logger) Option { return func(o *buildOptions) { o.log = l } }

func WithConnector(c docstore.Connector) Option { return func(o *buildOptions) { o.connector = c } }

// Factory adapts New to the runner's server factory signature.
func Factory(ctx context.Context, cfg Config) (http.Handler, error) {
	s, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// New builds a server. Without WithStore it opens its own MongoDB connection
// to cfg.DatabaseURI.
func New(ctx context.Context, cfg Config, opts ...Option) (*Server, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	s := &Server{cfg: cfg, store: bo.store, cache: bo.cache}

	if s.store == nil {
		conn, err := bo.connector.Connect(ctx, cfg.DatabaseURI)
		if err != nil {
			return nil, fmt.Errorf("appserver: %w", err)
		}
		s.conn = conn
		s.store = conn.Store()
	}

	s.log = s.buildLogger(bo.log)

	if s.cache == nil {
		if url := cfg.ExtraString(ExtraCacheURL); url != "" {
			c, err := cache.Open(ctx, url, cachePrefix(cfg))
			if err != nil {
				_ = s.Shutdown(context.Background())
				return nil, fmt.Errorf("appserver: %w", err)
			}
			s.cache = c
			s.ownCache = true
		}
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Server) buildLogger(base *slog.Logger) *slog.Logger {
	var handlers []slog.Handler
	if !s.cfg.Silent {
		if base == nil {
			base = logger.L
		}
		handlers = append(handlers, base.Handler())
	}

	if name := s.cfg.ExtraString(ExtraLogCollection); name != "" && s.conn != nil {
		s.logSink = logger.NewMongoHandler(s.conn.Database().Collection(name), slog.LevelInfo)
		handlers = append(handlers, s.logSink)
	}

	switch len(handlers) {
	case 0:
		return logger.Discard()
	case 1:
		return slog.New(handlers[0])
	default:
		return slog.New(logger.NewMultiHandler(handlers...))
	}
}

func cachePrefix(cfg Config) string {
	return "testserver:" + cfg.AppID + ":" + cfg.DatabaseName + ":"
}

func (s *Server) routes() http.Handler {
	r := router.New()
	r.Use(
		metrics.Middleware,
		middleware.CORS,
		middleware.RequestID,
		middleware.Logger(s.log),
		middleware.Recovery,
	)

	r.Get("/health", "health", s.health)

	keys := middleware.Keys{AppID: s.cfg.AppID, MasterKey: s.cfg.MasterKey, JavaScriptKey: s.cfg.JavaScriptKey}
	classes := r.Group("/classes", middleware.KeyAuth(keys))
	classes.Post("/{class}", "objects.create", s.createObject)
	classes.Get("/{class}", "objects.list", s.listObjects)
	classes.Delete("/{class}", "classes.drop", s.dropClass, middleware.RequireMaster)
	classes.Get("/{class}/{id}", "objects.show", s.getObject)
	classes.Put("/{class}/{id}", "objects.update", s.updateObject)
	classes.Delete("/{class}/{id}", "objects.delete", s.deleteObject)

	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Config returns the configuration the server was built with.
func (s *Server) Config() Config { return s.cfg }

// Purge flushes the object cache, if one is configured. The runner calls it
// after dropping the database so no stale objects are served.
func (s *Server) Purge(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Flush(ctx)
}

// Shutdown flushes the log sink and closes the cache and database connection
// the server opened itself. Later calls return the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.logSink != nil {
			s.logSink.Close()
		}
		if s.cache != nil && s.ownCache {
			if err := s.cache.Close(); err != nil {
				errs = append(errs, fmt.Errorf("appserver: close cache: %w", err))
			}
		}
		if s.conn != nil {
			if err := s.conn.Disconnect(ctx); err != nil {
				errs = append(errs, fmt.Errorf("appserver: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
