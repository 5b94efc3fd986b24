package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/testserver/pkg/appserver"
	"github.com/shashiranjanraj/testserver/pkg/logger"
	"github.com/shashiranjanraj/testserver/pkg/runner"
)

type startFlags struct {
	databaseName    string
	databaseURI     string
	masterKey       string
	javaScriptKey   string
	appID           string
	host            string
	port            int
	mountPath       string
	serverURL       string
	verbose         bool
	cacheURL        string
	logCollection   string
	closeConnection bool
	exposeMetrics   bool
	dropOnExit      bool
	timeout         time.Duration
}

var startOpts startFlags

// testserver start: run until interrupted.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server and block until SIGINT or SIGTERM",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r, err := runner.Start(ctx, startOpts.options(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "listening on %s (%s)\n", r.URL(), r.Addr())

		<-ctx.Done()

		// The signal context is done; cleanup gets a fresh one.
		cleanup := context.Background()
		if startOpts.dropOnExit {
			if err := r.DropDatabase(cleanup); err != nil {
				logger.Error("drop on exit failed", "error", err)
			}
		}
		return r.Stop(cleanup)
	},
}

// options maps the flags onto runner.Options. Flags left unset keep the zero
// value so the runner's defaults apply.
func (f startFlags) options(cmd *cobra.Command) runner.Options {
	opts := runner.Options{
		DatabaseName:    f.databaseName,
		DatabaseURI:     f.databaseURI,
		MasterKey:       f.masterKey,
		JavaScriptKey:   f.javaScriptKey,
		AppID:           f.appID,
		Host:            f.host,
		Port:            f.port,
		MountPath:       f.mountPath,
		ServerURL:       f.serverURL,
		CloseConnection: f.closeConnection,
		ExposeMetrics:   f.exposeMetrics,
		Timeouts: runner.Timeouts{
			Connect: f.timeout,
			Bind:    f.timeout,
			Close:   f.timeout,
			Drop:    f.timeout,
		},
	}
	if cmd.Flags().Changed("verbose") {
		opts.Silent = runner.Bool(!f.verbose)
	}

	extra := map[string]interface{}{}
	if f.cacheURL != "" {
		extra[appserver.ExtraCacheURL] = f.cacheURL
	}
	if f.logCollection != "" {
		extra[appserver.ExtraLogCollection] = f.logCollection
	}
	if len(extra) > 0 {
		opts.Extra = extra
	}
	return opts
}

func init() {
	fl := startCmd.Flags()
	fl.StringVar(&startOpts.databaseName, "database-name", "", "database name (default parse-test)")
	fl.StringVar(&startOpts.databaseURI, "database-uri", "", "MongoDB connection string (default built from MONGODB_PORT)")
	fl.StringVar(&startOpts.masterKey, "master-key", "", "master key (default test)")
	fl.StringVar(&startOpts.javaScriptKey, "javascript-key", "", "JavaScript key (default test)")
	fl.StringVar(&startOpts.appID, "app-id", "", "application id (default test)")
	fl.StringVar(&startOpts.host, "host", "", "bind host (default all interfaces)")
	fl.IntVar(&startOpts.port, "port", 0, "listen port (default 30001)")
	fl.StringVar(&startOpts.mountPath, "mount-path", "", "mount path (default /1)")
	fl.StringVar(&startOpts.serverURL, "server-url", "", "public server URL (default http://localhost:{port}{mount-path})")
	fl.BoolVar(&startOpts.verbose, "verbose", false, "log requests (default from VERBOSE)")
	fl.StringVar(&startOpts.cacheURL, "cache-url", "", "redis URL for the object cache (default TESTSERVER_CACHE_URL)")
	fl.StringVar(&startOpts.logCollection, "log-collection", "", "also write server logs to this MongoDB collection")
	fl.BoolVar(&startOpts.closeConnection, "close-connection", false, "disconnect from the database on exit")
	fl.BoolVar(&startOpts.exposeMetrics, "metrics", false, "serve Prometheus metrics on /metrics")
	fl.BoolVar(&startOpts.dropOnExit, "drop-on-exit", false, "drop the database before exiting")
	fl.DurationVar(&startOpts.timeout, "timeout", 0, "bound for each connect, bind, close and drop (default TESTSERVER_TIMEOUT or 10s)")
}
