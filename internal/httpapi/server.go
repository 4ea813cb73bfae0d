package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/gearhead/internal/chat"
	"github.com/ent0n29/gearhead/internal/config"
	"github.com/ent0n29/gearhead/internal/convo"
	"github.com/ent0n29/gearhead/internal/observability"
)

type Dispatcher interface {
	Handle(ctx context.Context, in chat.Inbound) (chat.Reply, error)
}

type Server struct {
	cfg        config.Config
	store      *convo.Store
	dispatcher Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

func New(cfg config.Config, store *convo.Store, dispatcher Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may open a chat socket unless overridden.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/chat/messages", s.handleChatMessage)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Route("/v1/conversations/{userID}", func(r chi.Router) {
		r.Get("/", s.handleGetConversation)
		r.Delete("/", s.handleClearConversation)
		r.Get("/summary", s.handleConversationSummary)
	})
	r.Get("/v1/stats", s.handleStats)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	st := s.store.Stats()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":               "ready",
		"active_conversations": st.ActiveConversations,
	})
}

type chatRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "dispatcher not configured")
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "user_id is required")
		return
	}

	reply, err := s.dispatcher.Handle(r.Context(), chat.Inbound{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		Text:        req.Text,
	})
	if err != nil {
		if errors.Is(err, chat.ErrEmptyInput) {
			respondError(w, http.StatusBadRequest, "empty_text", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "dispatch_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

type conversationResponse struct {
	UserID      string          `json:"user_id"`
	DisplayName string          `json:"display_name,omitempty"`
	HasContext  bool            `json:"has_context"`
	Messages    []convo.Message `json:"messages"`
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	history := s.store.History(userID)
	if history == nil {
		history = []convo.Message{}
	}
	name, _ := s.store.DisplayName(userID)
	respondJSON(w, http.StatusOK, conversationResponse{
		UserID:      userID,
		DisplayName: name,
		HasContext:  len(history) > 0,
		Messages:    history,
	})
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	s.store.ClearHistory(chi.URLParam(r, "userID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConversationSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"summary": s.store.ContextSummary(userID),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	st := s.store.Stats()
	if s.metrics != nil {
		s.metrics.ObserveMemory(st)
	}
	respondJSON(w, http.StatusOK, st)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
