package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/testserver/pkg/appserver"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MONGODB_PORT", "")
	t.Setenv("VERBOSE", "")
	t.Setenv("TESTSERVER_CACHE_URL", "")
	t.Setenv("TESTSERVER_TIMEOUT", "")
}

func TestResolve_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Resolve(Options{})
	assert.Equal(t, appserver.Config{
		DatabaseName:  "parse-test",
		DatabaseURI:   "mongodb://localhost:27017/parse-test",
		MasterKey:     "test",
		JavaScriptKey: "test",
		AppID:         "test",
		Port:          30001,
		MountPath:     "/1",
		ServerURL:     "http://localhost:30001/1",
		Silent:        true,
	}, cfg)
}

func TestResolve_PortAndMountDriveServerURL(t *testing.T) {
	clearEnv(t)

	cfg := Resolve(Options{Port: 31337, MountPath: "/api"})
	assert.Equal(t, "http://localhost:31337/api", cfg.ServerURL)
}

func TestResolve_MongoPortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONGODB_PORT", "27018")

	assert.Equal(t, "mongodb://localhost:27018/parse-test", Resolve(Options{}).DatabaseURI)
	assert.Equal(t, "mongodb://localhost:27018/other", Resolve(Options{DatabaseName: "other"}).DatabaseURI)
	assert.Equal(t, "mongodb://db:1/x", Resolve(Options{DatabaseURI: "mongodb://db:1/x"}).DatabaseURI)
}

func TestResolve_Verbose(t *testing.T) {
	clearEnv(t)
	t.Setenv("VERBOSE", "1")

	assert.False(t, Resolve(Options{}).Silent)
	assert.True(t, Resolve(Options{Silent: Bool(true)}).Silent)
}

func TestResolve_CallerWins(t *testing.T) {
	clearEnv(t)

	opts := Options{
		DatabaseName:  "db",
		DatabaseURI:   "mongodb://elsewhere:1/db",
		MasterKey:     "mk",
		JavaScriptKey: "jk",
		AppID:         "id",
		Port:          40000,
		MountPath:     "/parse",
		ServerURL:     "https://proxy.example/parse",
		Silent:        Bool(false),
		Extra:         map[string]interface{}{"maxUploadSize": "5mb"},
	}
	cfg := Resolve(opts)

	assert.Equal(t, appserver.Config{
		DatabaseName:  "db",
		DatabaseURI:   "mongodb://elsewhere:1/db",
		MasterKey:     "mk",
		JavaScriptKey: "jk",
		AppID:         "id",
		Port:          40000,
		MountPath:     "/parse",
		ServerURL:     "https://proxy.example/parse",
		Silent:        false,
		Extra:         map[string]interface{}{"maxUploadSize": "5mb"},
	}, cfg)

	cfg.Extra["maxUploadSize"] = "changed"
	assert.Equal(t, "5mb", opts.Extra["maxUploadSize"], "Extra is copied, not aliased")
}

func TestResolve_CacheURLEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TESTSERVER_CACHE_URL", "redis://cache:6379/0")

	assert.Equal(t, "redis://cache:6379/0", Resolve(Options{}).ExtraString(appserver.ExtraCacheURL))

	cfg := Resolve(Options{Extra: map[string]interface{}{appserver.ExtraCacheURL: "redis://mine:1/0"}})
	assert.Equal(t, "redis://mine:1/0", cfg.ExtraString(appserver.ExtraCacheURL))
}

func TestTimeoutsWithDefaults(t *testing.T) {
	got := Timeouts{Bind: time.Second}.withDefaults(5 * time.Second)
	assert.Equal(t, Timeouts{Connect: 5 * time.Second, Bind: time.Second, Close: 5 * time.Second, Drop: 5 * time.Second}, got)
}
