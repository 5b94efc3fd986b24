package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/testserver/pkg/appserver"
	"github.com/shashiranjanraj/testserver/pkg/client"
	"github.com/shashiranjanraj/testserver/pkg/middleware"
	"github.com/shashiranjanraj/testserver/pkg/response"
)

func TestKeysAndBody(t *testing.T) {
	var got http.Header
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		assert.Equal(t, "/1/classes/Game", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		response.Created(w, map[string]string{"objectId": "abc"})
	}))
	defer srv.Close()

	c := client.FromConfig(appserver.Config{
		ServerURL:     srv.URL + "/1/",
		AppID:         "app",
		JavaScriptKey: "js",
		MasterKey:     "master",
	})
	assert.Equal(t, srv.URL+"/1", c.BaseURL())

	resp, err := c.Post("classes/Game").Body(map[string]int{"score": 3}).Send(context.Background())
	require.NoError(t, err)
	require.NoError(t, resp.Throw())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, "app", got.Get(middleware.AppIDHeader))
	assert.Equal(t, "js", got.Get(middleware.JavaScriptKeyHeader))
	assert.Empty(t, got.Get(middleware.MasterKeyHeader))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, float64(3), body["score"])

	var out map[string]string
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "abc", out["objectId"])
}

func TestMaster(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.WithKeys("app", "js"), client.WithMasterKey("master"))
	_, err := c.Delete("/classes/Game").Master().Send(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "master", got.Get(middleware.MasterKeyHeader))
	assert.Empty(t, got.Get(middleware.JavaScriptKeyHeader))
}

func TestThrowDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w)
	}))
	defer srv.Close()

	resp, err := client.New(srv.URL).Get("/classes/Game/nope").Send(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.OK())

	err = resp.Throw()
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "object not found", apiErr.Message)
	assert.True(t, client.IsCode(err, response.CodeObjectNotFound))
	assert.False(t, client.IsCode(err, response.CodeUnauthorized))
}

func TestThrowPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	resp, err := client.New(srv.URL).Get("/").Send(context.Background())
	require.NoError(t, err)
	assert.EqualError(t, resp.Throw(), "client: status 502: boom")
}

func TestRetryOnUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		response.OK(w, map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	resp, err := client.New(srv.URL).Get("/health").Retry(3, time.Millisecond).Send(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryGivesUpOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := client.New(url).Get("/health").Retry(2, time.Millisecond).Send(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 attempts failed")
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		response.OK(w, map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	assert.NoError(t, client.New(srv.URL).Health(context.Background()))
	assert.Error(t, client.New(srv.URL+"/nope").Health(context.Background()))
}
