package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mael-group/aegis-meet-go/internal/config"
	"github.com/mael-group/aegis-meet-go/internal/httpclient"
)

// Whereby provisions rooms through the Whereby REST API.
type Whereby struct {
	client *httpclient.Client
	cfg    *config.ProviderConfig
	origin string
	logger *slog.Logger
}

// NewWhereby creates a Whereby provider client.
// origin is the application origin used for domain restriction when
// cfg.RestrictToOrigin is set.
func NewWhereby(client *httpclient.Client, cfg *config.ProviderConfig, origin string, logger *slog.Logger) *Whereby {
	if logger == nil {
		logger = slog.Default()
	}
	return &Whereby{
		client: client,
		cfg:    cfg,
		origin: origin,
		logger: logger,
	}
}

// Name returns the provider name.
func (w *Whereby) Name() string {
	return "whereby"
}

type wherebyCreateRequest struct {
	RoomNamePrefix    string             `json:"roomNamePrefix"`
	RoomMode          string             `json:"roomMode"`
	IsLocked          bool               `json:"isLocked"`
	StartDate         string             `json:"startDate"`
	EndDate           string             `json:"endDate"`
	Fields            []string           `json:"fields"`
	RequireKnocking   bool               `json:"requireKnocking"`
	MeetingPassword   string             `json:"meetingPassword,omitempty"`
	DomainRestriction *domainRestriction `json:"domainRestriction,omitempty"`
}

type domainRestriction struct {
	Enabled bool     `json:"enabled"`
	Domains []string `json:"domains"`
}

type wherebyCreateResponse struct {
	RoomURL     string `json:"roomUrl"`
	HostRoomURL string `json:"hostRoomUrl"`
}

// CreateRoom provisions a locked, knock-to-enter room for the meeting window.
func (w *Whereby) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*Room, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := wherebyCreateRequest{
		RoomNamePrefix:  w.cfg.RoomNamePrefix,
		RoomMode:        "normal",
		IsLocked:        true,
		StartDate:       req.Start.UTC().Format(time.RFC3339),
		EndDate:         req.End.UTC().Format(time.RFC3339),
		Fields:          []string{"hostRoomUrl", "roomUrl"},
		RequireKnocking: true,
		MeetingPassword: req.RoomSecret,
	}
	if w.cfg.RestrictToOrigin && w.origin != "" {
		body.DomainRestriction = &domainRestriction{
			Enabled: true,
			Domains: []string{restrictionDomain(w.origin)},
		}
	}

	endpoint := strings.TrimSuffix(w.cfg.BaseURL, "/") + "/meetings"
	headers := map[string]string{
		"Authorization": "Bearer " + w.cfg.APIKey,
	}

	status, data, err := w.client.PostJSON(ctx, endpoint, headers, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}
	if status < 200 || status > 299 {
		w.logger.Warn("whereby create room rejected",
			"status", status,
			"meeting_id", req.MeetingID)
		return nil, fmt.Errorf("%w: unexpected status %d", ErrProvisioning, status)
	}

	var resp wherebyCreateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: bad response body: %v", ErrProvisioning, err)
	}
	if resp.RoomURL == "" || resp.HostRoomURL == "" {
		return nil, fmt.Errorf("%w: response missing room URLs", ErrProvisioning)
	}

	w.logger.Info("whereby room created", "meeting_id", req.MeetingID)

	return &Room{
		JoinURL: resp.RoomURL,
		HostURL: resp.HostRoomURL,
	}, nil
}

// restrictionDomain strips the scheme and port from an origin.
func restrictionDomain(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return origin
	}
	return u.Hostname()
}
