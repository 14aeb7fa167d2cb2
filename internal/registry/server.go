package registry

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/coffersTech/eventdeck/internal/controller"
)

// Server handles view-related HTTP requests.
type Server struct {
	store  *Store
	logger *zap.Logger
}

// NewServer creates a new view server.
func NewServer(store *Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:  store,
		logger: logger,
	}
}

type openResponse struct {
	ID   string               `json:"id"`
	View controller.ViewModel `json:"view"`
}

type filterRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type pageRequest struct {
	PageNo int `json:"pageNo"`
}

type pageSizeRequest struct {
	PageSize int `json:"pageSize"`
}

type queryResponse struct {
	NanoQL string              `json:"nanoql"`
	Params map[string][]string `json:"params"`
}

// HandleViews lists or opens views.
// GET /api/views, POST /api/views
func (s *Server) HandleViews(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.List())

	case http.MethodPost:
		var req OpenRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid JSON", http.StatusBadRequest)
				return
			}
		}
		if r.URL.Query().Get("wait") == "true" {
			req.Wait = true
		}
		v := s.store.Open(r.Context(), req)
		writeJSON(w, http.StatusCreated, openResponse{ID: v.ID, View: v.Controller.View()})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleView serves a single view and its operations.
// /api/views/{id}[/filter|/page|/page-size|/refresh|/query]
func (s *Server) HandleView(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/views/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	if action == "" && r.Method == http.MethodDelete {
		if err := s.store.Close(id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	v, err := s.store.Get(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	c := v.Controller

	switch action {
	case "":
		if !allow(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, c.View())

	case "filter":
		if !allow(w, r, http.MethodPost) {
			return
		}
		// Filter toggles are disabled until the fetch lands
		if c.View().IsLoading {
			http.Error(w, "view is loading", http.StatusConflict)
			return
		}
		var req filterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		vm, err := c.UpdateFilter(req.Key, req.Value)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, vm)

	case "page":
		if !allow(w, r, http.MethodPost) {
			return
		}
		var req pageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, c.GoToPage(req.PageNo))

	case "page-size":
		if !allow(w, r, http.MethodPost) {
			return
		}
		var req pageSizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		vm, err := c.SetPageSize(req.PageSize)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, vm)

	case "refresh":
		if !allow(w, r, http.MethodPost) {
			return
		}
		writeJSON(w, http.StatusOK, c.Refresh(r.Context()))

	case "query":
		if !allow(w, r, http.MethodGet) {
			return
		}
		criteria := c.View().Filters
		writeJSON(w, http.StatusOK, queryResponse{
			NanoQL: criteria.NanoQL(),
			Params: criteria.Params(),
		})

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrViewNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Error("view store error", zap.Error(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
