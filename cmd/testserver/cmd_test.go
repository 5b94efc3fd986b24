package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/testserver/pkg/appserver"
	"github.com/shashiranjanraj/testserver/pkg/response"
	"github.com/shashiranjanraj/testserver/pkg/runner"
)

func newStartCmd(t *testing.T, args ...string) (*cobra.Command, *startFlags) {
	t.Helper()
	var f startFlags
	cmd := &cobra.Command{Use: "start"}
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "")
	cmd.Flags().IntVar(&f.port, "port", 0, "")
	cmd.Flags().StringVar(&f.cacheURL, "cache-url", "", "")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd, &f
}

func TestStartOptions_UnsetFlagsKeepDefaults(t *testing.T) {
	cmd, f := newStartCmd(t)
	opts := f.options(cmd)

	assert.Nil(t, opts.Silent)
	assert.Nil(t, opts.Extra)
	assert.Zero(t, opts.Port)
	assert.Equal(t, runner.Timeouts{}, opts.Timeouts)
}

func TestStartOptions_FlagsWin(t *testing.T) {
	cmd, f := newStartCmd(t, "--verbose", "--port", "30002", "--cache-url", "redis://localhost:6379/0", "--timeout", "3s")
	opts := f.options(cmd)

	require.NotNil(t, opts.Silent)
	assert.False(t, *opts.Silent)
	assert.Equal(t, 30002, opts.Port)
	assert.Equal(t, "redis://localhost:6379/0", opts.Extra[appserver.ExtraCacheURL])
	assert.Equal(t, 3*time.Second, opts.Timeouts.Drop)
}

func TestStartOptions_VerboseFalseSilences(t *testing.T) {
	cmd, f := newStartCmd(t, "--verbose=false")
	opts := f.options(cmd)

	require.NotNil(t, opts.Silent)
	assert.True(t, *opts.Silent)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1/health" {
			http.NotFound(w, r)
			return
		}
		response.OK(w, map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"ping", "--url", srv.URL + "/1"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, srv.URL+"/1 ok\n", out.String())

	rootCmd.SetArgs([]string{"ping", "--url", srv.URL + "/2"})
	assert.Error(t, rootCmd.Execute())
}
