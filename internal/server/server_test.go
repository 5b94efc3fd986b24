package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/testserver/pkg/logger"
)

func TestListenServeShutdown(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})

	s, err := Listen(context.Background(), "127.0.0.1:0", h, logger.Discard())
	require.NoError(t, err)

	resp, err := http.Get("http://" + s.Addr().String() + "/")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(b))

	require.NoError(t, s.Shutdown(context.Background()))

	_, err = net.DialTimeout("tcp", s.Addr().String(), time.Second)
	assert.Error(t, err, "port must be released after Shutdown")
}

func TestListen_AddressInUse(t *testing.T) {
	first, err := Listen(context.Background(), "127.0.0.1:0", http.NotFoundHandler(), logger.Discard())
	require.NoError(t, err)
	defer first.Shutdown(context.Background())

	_, err = Listen(context.Background(), first.Addr().String(), http.NotFoundHandler(), logger.Discard())
	assert.Error(t, err)
}

func TestShutdown_DeadlineForcesClose(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	s, err := Listen(context.Background(), "127.0.0.1:0", h, logger.Discard())
	require.NoError(t, err)
	defer close(release)

	go func() {
		resp, err := http.Get("http://" + s.Addr().String() + "/")
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = s.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
