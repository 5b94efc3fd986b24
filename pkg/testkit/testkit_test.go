package testkit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/testserver/pkg/appserver"
	"github.com/shashiranjanraj/testserver/pkg/middleware"
	"github.com/shashiranjanraj/testserver/pkg/response"
	"github.com/shashiranjanraj/testserver/pkg/runner"
	"github.com/shashiranjanraj/testserver/pkg/testkit"
)

// ─── Fakes ───────────────────────────────────────────────────────────────────

type countingConn struct {
	drops atomic.Int32
}

func (c *countingConn) DropDatabase(context.Context) error { c.drops.Add(1); return nil }
func (c *countingConn) Disconnect(context.Context) error   { return nil }

// fakeServer echoes created objects and guards class drops with the master
// key, like the real application server.
func fakeServer(_ context.Context, cfg appserver.Config) (http.Handler, error) {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.KeyAuth(middleware.Keys{AppID: cfg.AppID, MasterKey: cfg.MasterKey, JavaScriptKey: cfg.JavaScriptKey}))
		r.Post("/classes/{class}", func(w http.ResponseWriter, req *http.Request) {
			var obj map[string]interface{}
			if err := json.NewDecoder(req.Body).Decode(&obj); err != nil {
				response.Error(w, http.StatusBadRequest, response.CodeInvalidJSON, "invalid JSON")
				return
			}
			obj["objectId"] = "generated"
			response.Created(w, obj)
		})
		r.With(middleware.RequireMaster).Delete("/classes/{class}", func(w http.ResponseWriter, _ *http.Request) {
			response.OK(w, map[string]interface{}{})
		})
	})
	return r, nil
}

func options(conn runner.Conn) runner.Options {
	return runner.Options{
		Connector: runner.ConnectorFunc(func(context.Context, string) (runner.Conn, error) { return conn, nil }),
		NewServer: fakeServer,
	}
}

// ─── Tests ───────────────────────────────────────────────────────────────────

func TestRunDir(t *testing.T) {
	r := testkit.Start(t, options(&countingConn{}))
	testkit.RunDir(t, testkit.Client(r), "testdata")
}

func TestRunSingle(t *testing.T) {
	r := testkit.Start(t, options(&countingConn{}))
	testkit.Run(t, testkit.Client(r), filepath.Join("testdata", "01_health.json"))
}

func TestStart_CleanupDropsAndStops(t *testing.T) {
	conn := &countingConn{}
	var r *runner.Runner

	t.Run("inner", func(t *testing.T) {
		r = testkit.Start(t, options(conn))
		require.True(t, r.Running())
		assert.NotZero(t, r.Config().Port)
		require.NoError(t, testkit.Client(r).Health(context.Background()))
	})

	assert.False(t, r.Running())
	assert.Equal(t, int32(1), conn.drops.Load())
}

func TestLoadAllFromDir_SkipsBodyFiles(t *testing.T) {
	scenarios, errs := testkit.LoadAllFromDir("testdata")
	require.Empty(t, errs)
	require.Len(t, scenarios, 4)
	assert.Equal(t, "health", scenarios[0].Name)
	assert.Equal(t, "GET", scenarios[0].RequestMethod)
	assert.True(t, scenarios[3].Master)
}

func TestLoadScenario_Invalid(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing_code.json")
	require.NoError(t, os.WriteFile(missing, []byte(`{"name":"x","requestUrl":"/health"}`), 0o644))
	_, err := testkit.LoadScenario(missing)
	assert.ErrorContains(t, err, "expectedCode is required")

	_, errs := testkit.LoadAllFromDir(t.TempDir())
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "no scenario files")
}

func TestFreePort(t *testing.T) {
	a, b := testkit.FreePort(t), testkit.FreePort(t)
	assert.NotZero(t, a)
	assert.NotZero(t, b)
}
