package sinks

import (
	"context"
	"time"

	"fitfunnel/api/models"
)

// ProfileWriter is satisfied by store.ProfileStore.
type ProfileWriter interface {
	UpsertProfile(ctx context.Context, userID, sessionID string, traits models.Properties) error
}

// ProfileSink keeps user traits in Postgres. Only identify calls matter to
// it; track and page are accepted and ignored.
type ProfileSink struct {
	writer  ProfileWriter
	timeout time.Duration
}

func NewProfileSink(writer ProfileWriter) *ProfileSink {
	return &ProfileSink{writer: writer, timeout: 5 * time.Second}
}

func (s *ProfileSink) Name() string { return "profiles" }

func (s *ProfileSink) Track(context.Context, models.Event) error { return nil }

func (s *ProfileSink) Page(context.Context, string) error { return nil }

func (s *ProfileSink) Identify(ctx context.Context, userID string, traits models.Properties) error {
	sessionID, _ := traits[models.PropSessionID].(string)

	stored := traits.Clone()
	delete(stored, models.PropSessionID)
	delete(stored, models.PropTimestamp)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.writer.UpsertProfile(ctx, userID, sessionID, stored)
}
