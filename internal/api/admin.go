package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mael-group/aegis-meet-go/internal/appctx"
	"github.com/mael-group/aegis-meet-go/internal/store"
)

// AdminRoomsHandler exposes the room directory for operators. Both
// endpoints sit behind the API key; room secrets and host links are
// never included in listings.
type AdminRoomsHandler struct {
	Directory store.RoomDirectory
	Logger    *slog.Logger
}

type adminRoomView struct {
	MeetingID      string `json:"meeting_id"`
	ModeratorEmail string `json:"moderator_email"`
	JoinURL        string `json:"join_url"`
	WindowStart    int64  `json:"window_start"`
	WindowEnd      int64  `json:"window_end"`
	CreatedAt      int64  `json:"created_at"`
}

// List handles GET /api/rooms.
func (h *AdminRoomsHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.Directory.ListRooms(r.Context())
	if err != nil {
		h.requestLogger(r).Error("room listing failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to list rooms")
		return
	}

	views := make([]adminRoomView, 0, len(records))
	for _, rec := range records {
		views = append(views, adminRoomView{
			MeetingID:      rec.MeetingID,
			ModeratorEmail: rec.ModeratorEmail,
			JoinURL:        rec.JoinURL,
			WindowStart:    rec.WindowStart,
			WindowEnd:      rec.WindowEnd,
			CreatedAt:      rec.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": views,
		"count": len(views),
	})
}

// Delete handles DELETE /api/rooms/{meetingID}. The provider-side room
// is left alone; it expires with its scheduled window.
func (h *AdminRoomsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	if meetingID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "meeting id is required")
		return
	}

	if err := h.Directory.DeleteRoom(r.Context(), meetingID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "not_found", "no room for this meeting")
			return
		}
		h.requestLogger(r).Error("room delete failed", "meeting_id", meetingID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to delete room")
		return
	}

	h.requestLogger(r).Info("room deleted", "meeting_id", meetingID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "meeting_id": meetingID})
}

func (h *AdminRoomsHandler) requestLogger(r *http.Request) *slog.Logger {
	if l, ok := appctx.LoggerFromContext(r.Context()); ok {
		return l
	}
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
