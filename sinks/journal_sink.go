package sinks

import (
	"context"
	"time"

	"fitfunnel/api/models"
	"fitfunnel/api/store"
)

// JournalWriter is satisfied by store.JournalStore.
type JournalWriter interface {
	Append(ctx context.Context, kind string, rec models.EventRecord) error
}

// JournalSink appends every call to the local SQLite journal.
type JournalSink struct {
	writer JournalWriter
	now    func() time.Time
}

func NewJournalSink(writer JournalWriter) *JournalSink {
	return &JournalSink{writer: writer, now: time.Now}
}

func (s *JournalSink) Name() string { return "journal" }

func (s *JournalSink) Track(ctx context.Context, event models.Event) error {
	rec, err := trackRecord(event)
	if err != nil {
		return err
	}
	return s.writer.Append(ctx, store.JournalTrack, rec)
}

func (s *JournalSink) Identify(ctx context.Context, userID string, traits models.Properties) error {
	rec, err := identifyRecord(userID, traits, s.now())
	if err != nil {
		return err
	}
	return s.writer.Append(ctx, store.JournalIdentify, rec)
}

func (s *JournalSink) Page(ctx context.Context, name string) error {
	rec, err := pageRecord(name, s.now())
	if err != nil {
		return err
	}
	return s.writer.Append(ctx, store.JournalPage, rec)
}
