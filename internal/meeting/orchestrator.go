package meeting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mael-group/aegis-meet-go/internal/appctx"
	"github.com/mael-group/aegis-meet-go/internal/provider"
	"github.com/mael-group/aegis-meet-go/internal/store"
)

// ResolveReason classifies why a resolve request was rejected.
type ResolveReason string

const (
	ReasonInvalidToken       ResolveReason = "invalid_token"
	ReasonExpiredToken       ResolveReason = "expired_token"
	ReasonMeetingNotStarted  ResolveReason = "meeting_not_started"
	ReasonProvisioningFailed ResolveReason = "provisioning_failed"
	ReasonInvalidRole        ResolveReason = "invalid_role"
)

// ResolveError is a structured rejection. Err carries the underlying
// cause for logging; only Reason is surfaced to clients.
type ResolveError struct {
	Reason ResolveReason
	Err    error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve rejected (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve rejected (%s)", e.Reason)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// rejected builds a ResolveError.
func rejected(reason ResolveReason, err error) *ResolveError {
	return &ResolveError{Reason: reason, Err: err}
}

// RoomGrant is the role-scoped view of a provisioned room returned to a
// resolved caller. HostURL and RoomSecret are only populated for
// moderators.
type RoomGrant struct {
	MeetingID   string    `json:"meeting_id"`
	Role        Role      `json:"role"`
	JoinURL     string    `json:"join_url"`
	HostURL     string    `json:"host_url,omitempty"`
	RoomSecret  string    `json:"room_secret,omitempty"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	WasNew      bool      `json:"-"`
}

// Orchestrator turns verified claims into room grants. It holds no
// mutable state; concurrent callers are coordinated entirely by the
// directory's atomic create.
type Orchestrator struct {
	codec     *Codec
	directory store.RoomDirectory
	provider  provider.RoomProvider
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(codec *Codec, directory store.RoomDirectory, prov provider.RoomProvider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		codec:     codec,
		directory: directory,
		provider:  prov,
		logger:    logger,
		now:       time.Now,
	}
}

// ResolveToken verifies the raw token and resolves the claim.
func (o *Orchestrator) ResolveToken(ctx context.Context, token string) (*RoomGrant, error) {
	claim, err := o.codec.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, rejected(ReasonExpiredToken, err)
		}
		return nil, rejected(ReasonInvalidToken, err)
	}
	return o.Resolve(ctx, claim)
}

// Resolve runs the provisioning state machine for a verified claim.
//
// Moderators create the room on first use; everyone afterwards, either
// role, reads the stored record. A participant arriving before the room
// exists is a normal condition, not a failure.
func (o *Orchestrator) Resolve(ctx context.Context, claim *Claim) (*RoomGrant, error) {
	logger := o.logger
	if l, ok := appctx.LoggerFromContext(ctx); ok {
		logger = l
	}
	logger = logger.With(
		"meeting_id", claim.MeetingID,
		"role", string(claim.Role))

	rec, err := o.directory.FindRoom(ctx, claim.MeetingID)
	switch {
	case err == nil:
		// Record present: both roles read it as-is.
		logger.Debug("room found in directory")
		return o.grant(claim, rec), nil

	case errors.Is(err, store.ErrNotFound):
		// fall through to role routing below

	default:
		return nil, rejected(ReasonProvisioningFailed, fmt.Errorf("directory lookup: %w", err))
	}

	switch claim.Role {
	case RoleParticipant:
		logger.Info("participant arrived before room was opened")
		return nil, rejected(ReasonMeetingNotStarted, nil)

	case RoleModerator:
		return o.createRoom(ctx, logger, claim)

	default:
		// Unreachable for codec-verified claims, kept for direct callers.
		return nil, rejected(ReasonInvalidRole, fmt.Errorf("unknown role %q", string(claim.Role)))
	}
}

// createRoom provisions a new room and persists it. The provider call
// runs outside any lock; the directory's atomic create arbitrates races,
// and a losing call's provider-side room is discarded from the response.
func (o *Orchestrator) createRoom(ctx context.Context, logger *slog.Logger, claim *Claim) (*RoomGrant, error) {
	secret := claim.RoomSecret
	if secret == "" {
		secret = NewRoomSecret()
	}

	// The room must outlive a cancelled caller: once the provider call
	// starts, abandoning it or the directory write could strand a room
	// that no record points at.
	opCtx := context.WithoutCancel(ctx)

	room, err := o.provider.CreateRoom(opCtx, &provider.CreateRoomRequest{
		MeetingID:  claim.MeetingID,
		Start:      claim.WindowStart,
		End:        claim.WindowEnd,
		RoomSecret: secret,
	})
	if err != nil {
		logger.Error("provider room creation failed", "error", err)
		return nil, rejected(ReasonProvisioningFailed, err)
	}

	rec := &store.RoomRecord{
		MeetingID:      claim.MeetingID,
		ModeratorEmail: claim.SubjectEmail,
		JoinURL:        room.JoinURL,
		HostURL:        room.HostURL,
		RoomSecret:     secret,
		WindowStart:    claim.WindowStart.Unix(),
		WindowEnd:      claim.WindowEnd.Unix(),
		CreatedAt:      o.now().Unix(),
	}

	stored, wasNew, err := o.directory.CreateRoomIfAbsent(opCtx, rec)
	if err != nil {
		logger.Error("room record write failed", "error", err)
		return nil, rejected(ReasonProvisioningFailed, fmt.Errorf("persist room: %w", err))
	}

	if wasNew {
		logger.Info("room provisioned")
	} else {
		// Lost the race. The stored record wins; this request's
		// provider-side room is orphaned and never surfaced.
		logger.Warn("concurrent provisioning detected, using stored room")
	}

	g := o.grant(claim, stored)
	g.WasNew = wasNew
	return g, nil
}

// grant builds the role-scoped response view of a record.
func (o *Orchestrator) grant(claim *Claim, rec *store.RoomRecord) *RoomGrant {
	g := &RoomGrant{
		MeetingID:   rec.MeetingID,
		Role:        claim.Role,
		JoinURL:     rec.JoinURL,
		WindowStart: time.Unix(rec.WindowStart, 0).UTC(),
		WindowEnd:   time.Unix(rec.WindowEnd, 0).UTC(),
	}
	if claim.Role == RoleModerator {
		g.HostURL = rec.HostURL
		g.RoomSecret = rec.RoomSecret
	}
	return g
}
