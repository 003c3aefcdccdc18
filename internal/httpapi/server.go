// Package httpapi is the verification submission surface. The front end
// posts the connected wallet here; the handler runs the ownership check
// and relays the result to the bot process.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"nftgate/internal/domain"
	"nftgate/internal/observability"
	"nftgate/internal/relay"
	"nftgate/internal/wallet"
)

// OwnershipVerifier answers whether a wallet holds enough qualifying
// NFTs.
type OwnershipVerifier interface {
	HasRequiredNFT(ctx context.Context, wallet, collection string) (bool, int, error)
}

// Server serves the verification API.
type Server struct {
	verifier          OwnershipVerifier
	webhook           *relay.Client
	defaultCollection string
	logger            *slog.Logger
}

// Options for creating a Server.
type Options struct {
	Verifier OwnershipVerifier

	// Webhook delivers results to the bot process. Nil disables
	// delivery; the API then only answers the submitting client.
	Webhook *relay.Client

	// DefaultCollection restricts checks when the request names none.
	// Empty means any NFT qualifies.
	DefaultCollection string

	Logger *slog.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		verifier:          opts.Verifier,
		webhook:           opts.Webhook,
		defaultCollection: opts.DefaultCollection,
		logger:            opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Router returns the API router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/verify-nft", s.handleVerify).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)
	return r
}

type verifyRequest struct {
	WalletAddress string `json:"wallet_address"`
	TgID          string `json:"tg_id"`
	CollectionID  string `json:"collection_id"`
}

type verifyResponse struct {
	HasNFT   bool   `json:"has_nft"`
	NFTCount int    `json:"nft_count"`
	Message  string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	userID, err := strconv.ParseInt(req.TgID, 10, 64)
	if err != nil || userID == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tg_id must be a numeric Telegram user id"})
		return
	}

	if err := wallet.Validate(req.WalletAddress); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !wallet.IsOnCurve(req.WalletAddress) {
		// Off-curve addresses are PDAs; they can own assets, so the
		// check proceeds.
		s.logger.Info("off-curve wallet address submitted", "wallet", req.WalletAddress)
	}

	collection := req.CollectionID
	if collection == "" {
		collection = s.defaultCollection
	}

	hasNFT, count, err := s.verifier.HasRequiredNFT(r.Context(), req.WalletAddress, collection)
	if err != nil {
		s.logger.Error("ownership check failed",
			"user_id", userID,
			"wallet", req.WalletAddress,
			"error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "asset lookup unavailable, try again"})
		return
	}

	result := domain.VerificationResult{
		UserID:        userID,
		WalletAddress: req.WalletAddress,
		HasNFT:        hasNFT,
		NFTCount:      count,
	}
	s.deliverResult(result)

	message := "No qualifying NFT found in this wallet."
	if hasNFT {
		message = "NFT ownership verified."
	}
	s.logger.Info("ownership check completed",
		"user_id", userID,
		"wallet", req.WalletAddress,
		"has_nft", hasNFT,
		"nft_count", count)
	writeJSON(w, http.StatusOK, verifyResponse{HasNFT: hasNFT, NFTCount: count, Message: message})
}

// deliverResult pushes the result to the bot process in the background.
// Delivery is best effort: the bot's timeout removes the user anyway if
// a positive result never arrives.
func (s *Server) deliverResult(result domain.VerificationResult) {
	if s.webhook == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.webhook.Deliver(ctx, result); err != nil {
			s.logger.Error("webhook delivery failed", "user_id", result.UserID, "error", err)
			return
		}
		s.logger.Info("webhook delivery acknowledged", "user_id", result.UserID)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
