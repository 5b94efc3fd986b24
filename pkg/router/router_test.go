package router_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/testserver/pkg/router"
)

func body(t *testing.T, h http.Handler, method, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	b, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(b)
}

func TestMount_PlainHandlerSeesStrippedPath(t *testing.T) {
	r := router.New()
	require.NoError(t, r.Mount("/1", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, req.URL.Path)
	})))

	code, got := body(t, r, http.MethodGet, "/1/classes/Game")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/classes/Game", got)

	code, _ = body(t, r, http.MethodGet, "/2/classes/Game")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMount_ChiSubRouter(t *testing.T) {
	sub := chi.NewRouter()
	sub.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	r := router.New()
	require.NoError(t, r.Mount("/api/v1/", sub))

	code, got := body(t, r, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", got)

	h, ok := r.Mounted("api/v1")
	assert.True(t, ok)
	assert.NotNil(t, h)
}

func TestMount_Twice(t *testing.T) {
	r := router.New()
	require.NoError(t, r.Mount("/1", http.NotFoundHandler()))
	assert.Error(t, r.Mount("/1/", http.NotFoundHandler()))
}

func TestNamedRoutes(t *testing.T) {
	r := router.New()
	g := r.Group("/classes")
	g.Get("/{class}/{id}", "object.show", func(w http.ResponseWriter, _ *http.Request) {})
	g.Delete("/{class}", "class.drop", func(w http.ResponseWriter, _ *http.Request) {})
	r.Get("/health", "health", func(w http.ResponseWriter, _ *http.Request) {})

	url, err := r.URL("object.show", map[string]string{"class": "Game", "id": "x1"})
	require.NoError(t, err)
	assert.Equal(t, "/classes/Game/x1", url)

	_, err = r.URL("object.show", map[string]string{"class": "Game"})
	assert.Error(t, err)

	_, err = r.URL("missing", nil)
	assert.Error(t, err)

	routes := r.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, router.RouteInfo{Method: http.MethodDelete, Path: "/classes/{class}", Name: "class.drop"}, routes[0])
	assert.Equal(t, "/health", routes[2].Path)
}

func TestGroupMiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(tag string) router.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, tag)
				next.ServeHTTP(w, req)
			})
		}
	}

	r := router.New()
	g := r.Group("/a", mw("outer")).Group("/b", mw("inner"))
	g.Post("/c", "", func(w http.ResponseWriter, _ *http.Request) { order = append(order, "handler") }, mw("route"))

	code, _ := body(t, r, http.MethodPost, "/a/b/c")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"outer", "inner", "route", "handler"}, order)
}
