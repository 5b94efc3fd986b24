package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/testserver/pkg/logger"
)

func TestNew_FormatByEnv(t *testing.T) {
	var text, js bytes.Buffer
	logger.New(&text, "local").Info("hello", "k", "v")
	logger.New(&js, "production").Info("hello", "k", "v")

	assert.Contains(t, text.String(), "msg=hello")
	assert.Contains(t, js.String(), `"msg":"hello"`)
}

func TestNew_ProductionSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger.New(&buf, "prod").Debug("noise")
	assert.Empty(t, buf.String())
}

func TestWithCtx(t *testing.T) {
	assert.Same(t, logger.L, logger.WithCtx(context.Background()))

	var buf bytes.Buffer
	tagged := logger.New(&buf, "local").With("request_id", "abc")
	ctx := logger.InjectLogger(context.Background(), tagged)

	logger.WithCtx(ctx).Info("scoped")
	assert.Contains(t, buf.String(), "request_id=abc")
}

func TestDiscard(t *testing.T) {
	assert.False(t, logger.Discard().Enabled(context.Background(), slog.LevelError))
}

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := logger.NewMultiHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(h).With("svc", "test")

	log.Info("info line")
	log.Error("error line")

	assert.Equal(t, 2, strings.Count(a.String(), "svc=test"))
	assert.NotContains(t, b.String(), "info line")
	assert.Contains(t, b.String(), "error line")
}
