package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"fitfunnel/api/models"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes events on <prefix>.track.<event_slug>, identifies on
// <prefix>.identify and page hits on <prefix>.page.
type NATSSink struct {
	pub    Publisher
	prefix string
}

func NewNATSSink(pub Publisher, prefix string) *NATSSink {
	return &NATSSink{pub: pub, prefix: strings.TrimSuffix(prefix, ".")}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Track(ctx context.Context, event models.Event) error {
	return s.publish(ctx, s.prefix+".track."+SubjectToken(event.Name), event)
}

func (s *NATSSink) Identify(ctx context.Context, userID string, traits models.Properties) error {
	return s.publish(ctx, s.prefix+".identify", map[string]any{
		"userId": userID,
		"traits": traits,
	})
}

func (s *NATSSink) Page(ctx context.Context, name string) error {
	return s.publish(ctx, s.prefix+".page", map[string]any{"name": name})
}

func (s *NATSSink) publish(ctx context.Context, subject string, v any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	if err := s.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// SubjectToken turns an event name into a single NATS subject token,
// e.g. "Item Added to Cart" -> "item_added_to_cart".
func SubjectToken(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	token := strings.TrimSuffix(b.String(), "_")
	if token == "" {
		return "unnamed"
	}
	return token
}
