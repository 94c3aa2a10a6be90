// api/models/event.go
package models

import (
	"encoding/json"
	"maps"
	"reflect"
	"time"
)

// Enrichment keys written by the analytics facade. Caller-supplied
// properties using these names are overwritten.
const (
	PropSessionID = "sessionId"
	PropUserID    = "userId"
	PropTimestamp = "timestamp"
	PropURL       = "url"
)

// TimestampLayout is ISO-8601 with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Properties holds JSON-compatible values: string, number, bool, nil,
// nested Properties / map[string]any, or slices of those.
type Properties map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	return maps.Clone(p)
}

// DeepClone copies p and every map and slice nested inside it. Other values
// are copied as they are. A nil receiver yields an empty map.
func (p Properties) DeepClone() Properties {
	if p == nil {
		return Properties{}
	}
	return deepCopy(reflect.ValueOf(p)).Interface().(Properties)
}

func deepCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		inner := deepCopy(v.Elem())
		out := reflect.New(v.Type()).Elem()
		out.Set(inner)
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	default:
		return v
	}
}

// Event is one tracked action, already enriched with session context.
type Event struct {
	Name       string
	Properties Properties
	SessionID  string
	UserID     string
	Timestamp  time.Time
	URL        string
}

// wireEvent is the shape every sink receives.
type wireEvent struct {
	Event      string     `json:"event"`
	Properties Properties `json:"properties"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{Event: e.Name, Properties: e.Properties})
}

// WithProperties returns a copy of e whose properties share no map or
// slice with e's.
func (e Event) WithProperties() Event {
	e.Properties = e.Properties.DeepClone()
	return e
}

// FormatTimestamp renders t the way enrichment does.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// EventRecord is the flattened row written to storage-backed sinks.
type EventRecord struct {
	EventID    string          `json:"eventId"`
	EventName  string          `json:"eventType"`
	UserID     string          `json:"userId"`
	SessionID  string          `json:"sessionId"`
	Timestamp  time.Time       `json:"timestamp"`
	PageURL    string          `json:"pagePath"`
	Properties json.RawMessage `json:"eventData,omitempty"`
}

// NewEventRecord flattens ev. The caller supplies the record id.
func NewEventRecord(id string, ev Event) (EventRecord, error) {
	data, err := json.Marshal(ev.Properties)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{
		EventID:    id,
		EventName:  ev.Name,
		UserID:     ev.UserID,
		SessionID:  ev.SessionID,
		Timestamp:  ev.Timestamp,
		PageURL:    ev.URL,
		Properties: data,
	}, nil
}

type TopPageResult struct {
	PageName string `json:"pageName"`
	Count    uint64 `json:"count"`
}
