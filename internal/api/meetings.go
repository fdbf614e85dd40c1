package api

import (
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"github.com/mael-group/aegis-meet-go/internal/appctx"
	"github.com/mael-group/aegis-meet-go/internal/mailer"
	"github.com/mael-group/aegis-meet-go/internal/meeting"
)

// MeetingsHandler schedules meetings: it mints the per-recipient links
// and sends the invitation emails.
type MeetingsHandler struct {
	Issuer *meeting.Issuer
	Mailer mailer.Mailer
	Logger *slog.Logger

	// readJSON body limit
	MaxBodyBytes int64
}

type personPayload struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type scheduleRequest struct {
	Summary      string          `json:"summary"`
	Description  string          `json:"description,omitempty"`
	Moderator    personPayload   `json:"moderator"`
	Participants []personPayload `json:"participants"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
}

type scheduleResponse struct {
	MeetingID       string            `json:"meeting_id"`
	ModeratorURL    string            `json:"moderator_url"`
	ParticipantURLs map[string]string `json:"participant_urls"`
	EmailsSent      int               `json:"emails_sent"`
	EmailsFailed    int               `json:"emails_failed"`
}

// Schedule handles POST /api/meetings.
func (h *MeetingsHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	var req scheduleRequest
	if err := readJSONBody(w, r, h.MaxBodyBytes, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if !validEmail(req.Moderator.Email) {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "moderator email is missing or invalid")
		return
	}
	if len(req.Participants) == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "at least one participant is required")
		return
	}
	for _, p := range req.Participants {
		if !validEmail(p.Email) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "participant email is missing or invalid")
			return
		}
	}

	window := meeting.TimeWindow{Start: req.Start, End: req.End}
	if err := window.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	meetingID := meeting.NewMeetingID()

	participants := make([]meeting.Recipient, 0, len(req.Participants))
	for _, p := range req.Participants {
		participants = append(participants, meeting.Recipient{
			Email:       p.Email,
			PhoneNumber: p.PhoneNumber,
		})
	}

	links, err := h.Issuer.IssueMeetingLinks(
		meeting.Recipient{Email: req.Moderator.Email, PhoneNumber: req.Moderator.PhoneNumber},
		participants, window, meetingID)
	if err != nil {
		logger.Error("link issuance failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "issuance_failed", "could not issue meeting links")
		return
	}

	// Email delivery is best effort. Issued links are returned to the
	// scheduling client either way, so a delivery failure never voids
	// the meeting.
	sent, failed := h.sendInvites(r, &req, links, logger)

	logger.Info("meeting scheduled",
		"meeting_id", meetingID,
		"participants", len(links.ParticipantURL),
		"emails_sent", sent,
		"emails_failed", failed)

	writeJSON(w, http.StatusCreated, scheduleResponse{
		MeetingID:       meetingID,
		ModeratorURL:    links.ModeratorURL,
		ParticipantURLs: links.ParticipantURL,
		EmailsSent:      sent,
		EmailsFailed:    failed,
	})
}

func (h *MeetingsHandler) sendInvites(r *http.Request, req *scheduleRequest, links *meeting.IssuedLinks, logger *slog.Logger) (sent, failed int) {
	if h.Mailer == nil {
		return 0, 0
	}

	deliver := func(invite *mailer.Invite) {
		if err := h.Mailer.Send(r.Context(), mailer.ComposeInvite(invite)); err != nil {
			logger.Warn("invite delivery failed",
				"meeting_id", links.MeetingID,
				"recipient", invite.Recipient,
				"error", err)
			failed++
			return
		}
		sent++
	}

	deliver(&mailer.Invite{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
		Link:        links.ModeratorURL,
		MeetingID:   links.MeetingID,
		Organizer:   req.Moderator.Email,
		Recipient:   req.Moderator.Email,
		IsModerator: true,
	})
	for email, link := range links.ParticipantURL {
		deliver(&mailer.Invite{
			Summary:     req.Summary,
			Description: req.Description,
			Start:       req.Start,
			End:         req.End,
			Link:        link,
			MeetingID:   links.MeetingID,
			Organizer:   req.Moderator.Email,
			Recipient:   email,
		})
	}
	return sent, failed
}

func (h *MeetingsHandler) requestLogger(r *http.Request) *slog.Logger {
	if l, ok := appctx.LoggerFromContext(r.Context()); ok {
		return l
	}
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}
