package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"nftgate/internal/domain"
)

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Handler exposes the mailbox over HTTP on the bot process: the
// callback endpoint the API process posts results to, plus the legacy
// poll surface for file-mailbox consumers.
type Handler struct {
	mailbox *Mailbox
	logger  *slog.Logger
}

// NewHandler creates a relay HTTP handler backed by the given mailbox.
func NewHandler(mailbox *Mailbox, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{mailbox: mailbox, logger: logger}
}

// Register mounts the relay routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/verify_callback", h.handleCallback).Methods(http.MethodPost)
	r.HandleFunc("/webhook_data", h.handleData).Methods(http.MethodGet)
	r.HandleFunc("/clear_webhook_data", h.handleClear).Methods(http.MethodPost)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	var res domain.VerificationResult
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		h.logger.Warn("malformed verify callback", "error", err)
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "invalid request body"})
		return
	}
	if res.UserID == 0 {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "tg_id is required"})
		return
	}

	res.ReceivedAt = time.Now()
	h.mailbox.Publish(res)
	h.logger.Info("verification result received",
		"user_id", res.UserID,
		"has_nft", res.HasNFT,
		"nft_count", res.NFTCount)
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "result accepted"})
}

func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	res, ok := h.mailbox.Peek()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	n := h.mailbox.Clear()
	h.logger.Info("relay mailbox cleared", "discarded", n)
	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
