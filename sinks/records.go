package sinks

import (
	"time"

	"github.com/google/uuid"

	"fitfunnel/api/models"
)

// Names used when identify and page calls are flattened into event rows.
const (
	identifyRecordName = "$identify"
	pageRecordName     = "$page"
)

func trackRecord(event models.Event) (models.EventRecord, error) {
	return models.NewEventRecord(uuid.NewString(), event)
}

func identifyRecord(userID string, traits models.Properties, now time.Time) (models.EventRecord, error) {
	sessionID, _ := traits[models.PropSessionID].(string)
	return models.NewEventRecord(uuid.NewString(), models.Event{
		Name:       identifyRecordName,
		Properties: traits,
		SessionID:  sessionID,
		UserID:     userID,
		Timestamp:  now.UTC(),
	})
}

func pageRecord(name string, now time.Time) (models.EventRecord, error) {
	return models.NewEventRecord(uuid.NewString(), models.Event{
		Name:       pageRecordName,
		Properties: models.Properties{"pageName": name},
		Timestamp:  now.UTC(),
	})
}
