// Package notify implements the push and notificationclick hooks of the edge
// worker by publishing events to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	perrors "github.com/jmgilman/go/errors"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/edge-worker/pkg/logging"
)

// Notification is a push message shown to the user.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Click is a notificationclick event.
type Click struct {
	Tag    string `json:"tag,omitempty"`
	Action string `json:"action,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Publisher publishes raw messages on a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Notifier turns hook calls into published events.
type Notifier struct {
	pub        Publisher
	subject    string
	publicHost string
	logger     zerolog.Logger
}

// New creates a notifier publishing on <subject>.push and <subject>.click.
func New(pub Publisher, subject, publicHost string) *Notifier {
	return &Notifier{
		pub:        pub,
		subject:    strings.TrimSuffix(subject, "."),
		publicHost: publicHost,
		logger:     logging.NewLogger("notify"),
	}
}

// Push publishes a notification.
func (n *Notifier) Push(ctx context.Context, note Notification) error {
	if strings.TrimSpace(note.Title) == "" {
		return perrors.New(perrors.CodeInvalidInput, "notification title is required")
	}
	note.URL = ResolveTarget(note.URL, n.publicHost)

	if err := n.publish(ctx, n.subject+".push", note); err != nil {
		return err
	}
	n.logger.Info().Str("tag", note.Tag).Msg("Push notification published")
	return nil
}

// Click publishes a click event and returns the path the client should navigate to.
func (n *Notifier) Click(ctx context.Context, click Click) (string, error) {
	target := ResolveTarget(click.URL, n.publicHost)
	click.URL = target

	if err := n.publish(ctx, n.subject+".click", click); err != nil {
		return "", err
	}
	n.logger.Debug().Str("tag", click.Tag).Str("url", target).Msg("Notification click published")
	return target, nil
}

func (n *Notifier) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	if err := n.pub.Publish(ctx, subject, data); err != nil {
		return perrors.Wrap(err, perrors.CodeUnavailable, "publish "+subject)
	}
	return nil
}

// ResolveTarget reduces raw to a same-origin path. Foreign or unparsable
// targets, and empty ones, resolve to "/".
func ResolveTarget(raw, publicHost string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "/"
	}
	if u.Host != "" && (publicHost == "" || !strings.EqualFold(u.Host, publicHost)) {
		return "/"
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return u.RequestURI()
}

// NATSPublisher publishes on a core NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

// ConnectNATS connects to the NATS server at natsURL.
func ConnectNATS(natsURL string) (*NATSPublisher, error) {
	conn, err := nats.Connect(
		natsURL,
		nats.Name("edge-worker"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.Timeout(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish sends data and waits until the server has received it.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := p.conn.Publish(subject, data); err != nil {
		return err
	}
	return p.conn.FlushWithContext(ctx)
}

// Connected reports whether the connection is currently up.
func (p *NATSPublisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
