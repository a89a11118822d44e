package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

type chatHandlerService interface {
	Handle(ctx context.Context, req Request) (*Response, error)
}

// Identity is the authenticated caller, when there is one.
type Identity struct {
	AccountID string
	Name      string
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message       string         `json:"message" validate:"required,max=2000"`
	AccountID     string         `json:"accountId" validate:"omitempty,max=128"`
	SessionID     string         `json:"sessionId" validate:"omitempty,max=128"`
	RecentHistory []HistoryEntry `json:"recentHistory" validate:"max=20,dive"`
}

// Handler wires HTTP requests to the conversation service.
type Handler struct {
	service  chatHandlerService
	store    ContextStore
	validate *validator.Validate
	identify func(*http.Request) (Identity, bool)
	logger   *logging.Logger
}

func NewHandler(service chatHandlerService, store ContextStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:  service,
		store:    store,
		validate: validator.New(),
		identify: func(*http.Request) (Identity, bool) { return Identity{}, false },
		logger:   logger,
	}
}

// WithIdentity lets an auth layer override the account id sent in the body.
func (h *Handler) WithIdentity(fn func(*http.Request) (Identity, bool)) *Handler {
	if fn != nil {
		h.identify = fn
	}
	return h
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := Request{
		Message:       req.Message,
		AccountID:     req.AccountID,
		SessionID:     req.SessionID,
		RecentHistory: req.RecentHistory,
	}
	if id, ok := h.identify(r); ok {
		in.AccountID = id.AccountID
		in.PatientName = id.Name
	}

	resp, err := h.service.Handle(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to handle chat message", "session_id", req.SessionID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Archive handles POST /chat/{sessionID}/archive.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	accountID := r.URL.Query().Get("accountId")
	if id, ok := h.identify(r); ok {
		accountID = id.AccountID
	}
	if accountID == "" {
		accountID = AnonymousAccount
	}

	if err := h.store.Archive(r.Context(), accountID, sessionID); err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			h.writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to archive conversation", "session_id", sessionID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to archive conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
