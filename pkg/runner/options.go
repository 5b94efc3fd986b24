package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shashiranjanraj/testserver/config"
	"github.com/shashiranjanraj/testserver/pkg/appserver"
	"github.com/shashiranjanraj/testserver/pkg/docstore"
)

const (
	DefaultDatabaseName = "parse-test"
	DefaultKey          = "test"
	DefaultPort         = 30001
	DefaultMountPath    = "/1"
)

// Conn is an open database connection as the runner sees it.
type Conn interface {
	DropDatabase(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Connector opens a Conn for a connection string.
type Connector interface {
	Connect(ctx context.Context, uri string) (Conn, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, uri string) (Conn, error)

func (f ConnectorFunc) Connect(ctx context.Context, uri string) (Conn, error) { return f(ctx, uri) }

// MongoConnector adapts a docstore.Connector. It is the default.
func MongoConnector(c docstore.Connector) Connector {
	return ConnectorFunc(func(ctx context.Context, uri string) (Conn, error) {
		conn, err := c.Connect(ctx, uri)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// ServerFactory constructs the application server from the merged config.
// If the returned handler also has Shutdown(context.Context) error, Stop and
// a failed Start call it. If it has Purge(context.Context) error,
// DropDatabase calls it after the drop.
type ServerFactory func(ctx context.Context, cfg appserver.Config) (http.Handler, error)

// Timeouts bound each external call. Zero fields take the configured default
// (TESTSERVER_TIMEOUT, else 10s).
type Timeouts struct {
	Connect time.Duration
	Bind    time.Duration
	Close   time.Duration
	Drop    time.Duration
}

func (t Timeouts) withDefaults(d time.Duration) Timeouts {
	if t.Connect <= 0 {
		t.Connect = d
	}
	if t.Bind <= 0 {
		t.Bind = d
	}
	if t.Close <= 0 {
		t.Close = d
	}
	if t.Drop <= 0 {
		t.Drop = d
	}
	return t
}

// Options configure Start. Zero values mean "use the default"; anything the
// caller sets wins over a computed default.
type Options struct {
	DatabaseName  string // default "parse-test"
	DatabaseURI   string // default mongodb://localhost:{MONGODB_PORT}/{DatabaseName}
	MasterKey     string // default "test"
	JavaScriptKey string // default "test"
	AppID         string // default "test"
	Port          int    // default 30001
	MountPath     string // default "/1"
	ServerURL     string // default http://localhost:{Port}{MountPath}

	// Host is the bind host. Empty binds every interface. It does not
	// affect ServerURL.
	Host string

	// Silent defaults to true unless VERBOSE=1.
	Silent *bool

	// Extra is forwarded to the server factory untouched.
	Extra map[string]interface{}

	// CloseConnection makes Stop disconnect the database connection. By
	// default it stays open and only the listener is released.
	CloseConnection bool

	// ExposeMetrics serves the Prometheus registry on /metrics, outside the
	// mount path.
	ExposeMetrics bool

	Timeouts  Timeouts
	Connector Connector
	NewServer ServerFactory
	Logger    *slog.Logger
}

// Resolve merges opts with the defaults. It reads MONGODB_PORT and VERBOSE
// through the config package.
func Resolve(opts Options) appserver.Config {
	cfg := appserver.Config{
		DatabaseName:  or(opts.DatabaseName, DefaultDatabaseName),
		MasterKey:     or(opts.MasterKey, DefaultKey),
		JavaScriptKey: or(opts.JavaScriptKey, DefaultKey),
		AppID:         or(opts.AppID, DefaultKey),
		Port:          opts.Port,
		MountPath:     or(opts.MountPath, DefaultMountPath),
		Silent:        !config.Verbose(),
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	cfg.DatabaseURI = opts.DatabaseURI
	if cfg.DatabaseURI == "" {
		cfg.DatabaseURI = fmt.Sprintf("mongodb://localhost:%s/%s", config.MongoPort(), cfg.DatabaseName)
	}

	cfg.ServerURL = opts.ServerURL
	if cfg.ServerURL == "" {
		cfg.ServerURL = fmt.Sprintf("http://localhost:%d%s", cfg.Port, cfg.MountPath)
	}

	if opts.Silent != nil {
		cfg.Silent = *opts.Silent
	}

	if len(opts.Extra) > 0 {
		cfg.Extra = make(map[string]interface{}, len(opts.Extra))
		for k, v := range opts.Extra {
			cfg.Extra[k] = v
		}
	}
	if url := config.CacheURL(); url != "" {
		if _, set := cfg.Extra[appserver.ExtraCacheURL]; !set {
			if cfg.Extra == nil {
				cfg.Extra = map[string]interface{}{}
			}
			cfg.Extra[appserver.ExtraCacheURL] = url
		}
	}
	return cfg
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// Bool returns a pointer to b, for Options.Silent.
func Bool(b bool) *bool { return &b }
