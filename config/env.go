package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	defaultMongoPort = "27017"
	defaultAppEnv    = "local"
	defaultTimeout   = 10 * time.Second
)

var (
	loadOnce sync.Once
	loadErr  error

	mu     sync.RWMutex
	values = defaultValues()
)

// Load reads config/testserver.json and .env once. Missing files are not an
// error. Process environment variables always win over file values.
func Load() error {
	loadOnce.Do(func() {
		loadErr = loadFromFiles("config/testserver.json", ".env")
	})
	return loadErr
}

func defaultValues() map[string]string {
	return map[string]string{
		"MONGODB_PORT":         defaultMongoPort,
		"APP_ENV":              defaultAppEnv,
		"VERBOSE":              "",
		"TESTSERVER_CACHE_URL": "",
		"TESTSERVER_TIMEOUT":   "",
	}
}

// MongoPort is the port used to build the default database URI.
func MongoPort() string {
	_ = Load()
	return get("MONGODB_PORT", defaultMongoPort)
}

// Verbose reports whether VERBOSE=1. Quiet mode is the default.
func Verbose() bool {
	_ = Load()
	return get("VERBOSE", "") == "1"
}

func AppEnv() string {
	_ = Load()
	return get("APP_ENV", defaultAppEnv)
}

func CacheURL() string {
	_ = Load()
	return get("TESTSERVER_CACHE_URL", "")
}

// Timeout is the default bound for each lifecycle step. Unparseable or
// non-positive values fall back to 10s.
func Timeout() time.Duration {
	_ = Load()
	raw := get("TESTSERVER_TIMEOUT", "")
	if raw == "" {
		return defaultTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultTimeout
	}
	return d
}

func loadFromFiles(configPath, envPath string) error {
	loaded := defaultValues()

	if err := mergeJSONConfig(configPath, loaded); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}

	if err := mergeDotEnv(envPath, loaded); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}

	mu.Lock()
	values = loaded
	mu.Unlock()

	return nil
}

func mergeJSONConfig(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var raw map[string]interface{}
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	for key, val := range raw {
		var s string
		switch v := val.(type) {
		case string:
			s = v
		case float64:
			s = fmt.Sprintf("%g", v)
		case bool:
			s = fmt.Sprintf("%t", v)
		default:
			continue
		}

		k := strings.ToUpper(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(s)
	}

	return nil
}

func mergeDotEnv(path string, out map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		key := strings.ToUpper(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}
		out[key] = value
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	return nil
}

func get(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}

	mu.RLock()
	defer mu.RUnlock()

	if value := strings.TrimSpace(values[key]); value != "" {
		return value
	}

	return fallback
}

// Get reads any config key by name with an optional fallback.
// Lookup order: process environment, .env, config/testserver.json, fallback.
func Get(key, fallback string) string {
	_ = Load()
	return get(key, fallback)
}
