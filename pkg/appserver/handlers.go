package appserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/testserver/pkg/docstore"
	"github.com/shashiranjanraj/testserver/pkg/logger"
	"github.com/shashiranjanraj/testserver/pkg/response"
)

const maxBodyBytes = 1 << 20

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

func (s *Server) createObject(w http.ResponseWriter, r *http.Request) {
	class := chi.URLParam(r, "class")
	fields, ok := decodeObject(w, r)
	if !ok {
		return
	}

	created, err := s.store.Create(r.Context(), class, fields)
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	if id, _ := created["objectId"].(string); id != "" && s.cfg.ServerURL != "" {
		w.Header().Set("Location", strings.TrimRight(s.cfg.ServerURL, "/")+"/classes/"+class+"/"+id)
	}
	logger.WithCtx(r.Context()).Debug("object created", "class", class, "id", created["objectId"])
	response.Created(w, created)
}

func (s *Server) listObjects(w http.ResponseWriter, r *http.Request) {
	class := chi.URLParam(r, "class")
	q := r.URL.Query()

	var where docstore.Object
	if raw := q.Get("where"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &where); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidQuery, "invalid where: "+err.Error())
			return
		}
	}

	var limit int64
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidQuery, "invalid limit")
			return
		}
		limit = n
	}

	results, err := s.store.Find(r.Context(), class, where, limit)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{"results": results})
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request) {
	class, id := chi.URLParam(r, "class"), chi.URLParam(r, "id")
	key := class + "/" + id

	var obj docstore.Object
	if s.cache != nil && s.cache.Get(r.Context(), key, &obj) {
		response.OK(w, obj)
		return
	}

	obj, err := s.store.Get(r.Context(), class, id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if s.cache != nil {
		if err := s.cache.Set(r.Context(), key, obj); err != nil {
			logger.WithCtx(r.Context()).Warn("cache set failed", "key", key, "error", err)
		}
	}
	response.OK(w, obj)
}

func (s *Server) updateObject(w http.ResponseWriter, r *http.Request) {
	class, id := chi.URLParam(r, "class"), chi.URLParam(r, "id")
	fields, ok := decodeObject(w, r)
	if !ok {
		return
	}

	updated, err := s.store.Update(r.Context(), class, id, fields)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.invalidate(r, class+"/"+id)
	response.OK(w, updated)
}

func (s *Server) deleteObject(w http.ResponseWriter, r *http.Request) {
	class, id := chi.URLParam(r, "class"), chi.URLParam(r, "id")

	if err := s.store.Delete(r.Context(), class, id); err != nil {
		s.storeError(w, r, err)
		return
	}
	s.invalidate(r, class+"/"+id)
	response.OK(w, struct{}{})
}

func (s *Server) dropClass(w http.ResponseWriter, r *http.Request) {
	class := chi.URLParam(r, "class")

	if err := s.store.DropClass(r.Context(), class); err != nil {
		s.storeError(w, r, err)
		return
	}
	if s.cache != nil {
		// Cached objects of the dropped class would otherwise outlive it.
		if err := s.cache.Flush(r.Context()); err != nil {
			logger.WithCtx(r.Context()).Warn("cache flush failed", "error", err)
		}
	}
	response.OK(w, struct{}{})
}

func (s *Server) invalidate(r *http.Request, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(r.Context(), key); err != nil {
		logger.WithCtx(r.Context()).Warn("cache invalidate failed", "key", key, "error", err)
	}
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		response.NotFound(w)
	case errors.Is(err, docstore.ErrInvalidClass):
		response.Error(w, http.StatusBadRequest, response.CodeInvalidClass, "invalid class name")
	default:
		logger.WithCtx(r.Context()).Error("store operation failed", "path", r.URL.Path, "error", err)
		response.Internal(w)
	}
}

func decodeObject(w http.ResponseWriter, r *http.Request) (docstore.Object, bool) {
	var obj docstore.Object
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&obj); err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeInvalidJSON, "invalid JSON body")
		return nil, false
	}
	if obj == nil {
		obj = docstore.Object{}
	}
	return obj, true
}
