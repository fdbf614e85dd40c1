package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mael-group/aegis-meet-go/internal/appctx"
	"github.com/mael-group/aegis-meet-go/internal/meeting"
)

// RoomsHandler resolves meeting tokens into room grants.
type RoomsHandler struct {
	Orchestrator *meeting.Orchestrator
	Logger       *slog.Logger

	MaxBodyBytes int64
}

type resolveRequest struct {
	Token string `json:"token"`
}

// Resolve handles POST /api/rooms/resolve. The token comes from the JSON
// body, or from the ?token query parameter for link-click clients.
func (h *RoomsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	token := r.URL.Query().Get("token")
	if token == "" {
		var req resolveRequest
		if err := readJSONBody(w, r, h.MaxBodyBytes, &req); err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		token = req.Token
	}
	if token == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	grant, err := h.Orchestrator.ResolveToken(r.Context(), token)
	if err != nil {
		h.writeResolveError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, grant)
}

// writeResolveError maps orchestrator rejections onto HTTP statuses.
// Reason strings are surfaced verbatim as the error code; underlying
// causes stay in the log.
func (h *RoomsHandler) writeResolveError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var re *meeting.ResolveError
	if !errors.As(err, &re) {
		logger.Error("resolve failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "room resolution failed")
		return
	}

	switch re.Reason {
	case meeting.ReasonInvalidToken, meeting.ReasonExpiredToken, meeting.ReasonInvalidRole:
		writeJSONError(w, http.StatusUnauthorized, string(re.Reason), "the meeting link is not valid")

	case meeting.ReasonMeetingNotStarted:
		// Normal condition: the host has not opened the room yet.
		writeJSONError(w, http.StatusNotFound, string(re.Reason), "the meeting has not been started by the host yet")

	case meeting.ReasonProvisioningFailed:
		logger.Error("room provisioning failed", "error", re.Err)
		writeJSONError(w, http.StatusBadGateway, string(re.Reason), "the meeting room could not be created, please retry")

	default:
		logger.Error("unmapped resolve rejection", "reason", string(re.Reason))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "room resolution failed")
	}
}

func (h *RoomsHandler) requestLogger(r *http.Request) *slog.Logger {
	if l, ok := appctx.LoggerFromContext(r.Context()); ok {
		return l
	}
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// readJSONBody decodes a size-limited JSON body into dst.
func readJSONBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	if limit <= 0 {
		limit = 64 << 10
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
