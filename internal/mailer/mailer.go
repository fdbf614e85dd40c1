// Package mailer delivers meeting invitation emails through pluggable
// drivers.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mael-group/aegis-meet-go/internal/config"
	"github.com/mael-group/aegis-meet-go/internal/httpclient"
)

// Attachment is a file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outbound email.
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Mailer sends messages. Implementations must be safe for concurrent use.
type Mailer interface {
	// Send delivers one message. Delivery failures are returned, never
	// retried internally.
	Send(ctx context.Context, msg *Message) error

	// Name returns the driver name (log, resend).
	Name() string
}

// Deps carries shared dependencies into driver factories.
type Deps struct {
	Client *httpclient.Client
	Logger *slog.Logger
	From   string
}

// Factory creates a mailer from its driver-specific option map.
type Factory func(opts map[string]any, deps Deps) (Mailer, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterDriver registers a mailer factory by name.
// This is typically called from init() in driver files.
func RegisterDriver(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// NewFromConfig creates the configured mailer driver.
func NewFromConfig(cfg *config.MailerConfig, client *httpclient.Client, logger *slog.Logger) (Mailer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	factoriesMu.RLock()
	factory, ok := factories[cfg.Driver]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown mailer driver: %s", cfg.Driver)
	}

	return factory(cfg.DriverOptions(cfg.Driver), Deps{
		Client: client,
		Logger: logger,
		From:   cfg.From,
	})
}
