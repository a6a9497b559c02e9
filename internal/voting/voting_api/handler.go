package voting_api

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-voting/internal/apperr"
	"ms-voting/internal/auth"
	"ms-voting/internal/config"
	"ms-voting/internal/logger"
	"ms-voting/internal/models"
	"ms-voting/internal/sse"
	"ms-voting/internal/utils"
	"ms-voting/internal/voting/service"
)

const defaultKeepAlive = 25 * time.Second

type Handler struct {
	Service   *service.VotingService
	Results   *sse.ResultsEmitter
	Tokens    *auth.TokenIssuer
	RateLimit config.RateLimitConfig
	Logger    *logger.Logger
	KeepAlive time.Duration
}

// NewHandler creates a new Handler instance
func NewHandler(svc *service.VotingService, results *sse.ResultsEmitter, tokens *auth.TokenIssuer, rl config.RateLimitConfig, log *logger.Logger) *Handler {
	return &Handler{
		Service:   svc,
		Results:   results,
		Tokens:    tokens,
		RateLimit: rl,
		Logger:    log,
		KeepAlive: defaultKeepAlive,
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Invalid("invalid request body")
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid id")
	}
	return id, nil
}

// clientIP returns the caller address without its port. RealIP has already
// replaced RemoteAddr when the request came through a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func principal(r *http.Request) models.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

// VerifyTicket handles POST /vote/verify {"ticketCode": "..."}
func (h *Handler) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	summary, err := h.Service.VerifyTicket(r.Context(), req.TicketCode)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.VerifyTicketResponse{Valid: true, Student: *summary})
}

// SubmitVote handles POST /vote/submit {"ticketCode": "...", "clubId": 1}
func (h *Handler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	receipt, err := h.Service.SubmitVote(r.Context(), req.TicketCode, req.ClubID, clientIP(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, receipt)
}

func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Service.ListResults(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, results)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
	})
}
