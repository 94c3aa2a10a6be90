// api/store/analytics_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"fitfunnel/api/database"
	"fitfunnel/api/models"
	"fitfunnel/api/utils"
)

const analyticsSchema = `
	CREATE TABLE IF NOT EXISTS analytics_events (
		event_id   String,
		event_name LowCardinality(String),
		session_id String,
		user_id    String,
		timestamp  DateTime64(3, 'UTC'),
		url        String,
		properties String
	) ENGINE = MergeTree
	ORDER BY (event_name, timestamp)
`

// AnalyticsStore writes funnel events to ClickHouse and answers the
// dashboard queries over them.
type AnalyticsStore struct {
	DB     *database.ClickHouseClient
	logger *zap.Logger
}

type EventTypeCountByTime struct {
	Time      time.Time `json:"time"`
	EventName *string   `json:"eventName,omitempty"`
	Count     uint64    `json:"count"`
}

func NewAnalyticsStore(chClient *database.ClickHouseClient, logger *zap.Logger) *AnalyticsStore {
	return &AnalyticsStore{
		DB:     chClient,
		logger: logger,
	}
}

func (s *AnalyticsStore) EnsureSchema(ctx context.Context) error {
	if err := s.DB.Conn.Exec(ctx, analyticsSchema); err != nil {
		return fmt.Errorf("failed to create analytics_events table: %w", err)
	}
	return nil
}

func (s *AnalyticsStore) InsertAnalyticsEvents(ctx context.Context, events []models.EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	// Column order must match analyticsSchema.
	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO analytics_events (
			event_id, event_name, session_id, user_id, timestamp, url, properties
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.EventID,
			event.EventName,
			event.SessionID,
			event.UserID,
			event.Timestamp,
			event.PageURL,
			string(event.Properties),
		)
		if err != nil {
			s.logger.Warn("Error appending event to batch", zap.String("event_id", event.EventID), zap.Error(err))
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	s.logger.Debug("Inserted analytics events", zap.Int("count", len(events)))
	return nil
}

func (s *AnalyticsStore) GetEventCountsOverTime(ctx context.Context, interval string, start, end time.Time, eventNameFilter string) ([]EventTypeCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	args := []interface{}{start, end}
	selectCols := fmt.Sprintf("toStartOf%s(timestamp) AS time_bucket, count() AS total_events", interval)
	groupByCols := "time_bucket"
	whereClause := "WHERE timestamp >= ? AND timestamp <= ?"
	orderByCols := "time_bucket ASC"
	isFilteringByName := eventNameFilter != ""

	if isFilteringByName {
		selectCols += ", event_name"
		groupByCols += ", event_name"
		whereClause += " AND event_name = ?"
		args = append(args, eventNameFilter)
		orderByCols += ", event_name ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM analytics_events
		%s
		GROUP BY %s
		ORDER BY %s
	`, selectCols, whereClause, groupByCols, orderByCols)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event counts over time: %w", err)
	}
	defer rows.Close()

	var results []EventTypeCountByTime
	for rows.Next() {
		var (
			timeBucket time.Time
			count      uint64
			eventName  string
			result     EventTypeCountByTime
		)

		if isFilteringByName {
			if err := rows.Scan(&timeBucket, &count, &eventName); err != nil {
				s.logger.Warn("Error scanning event count row", zap.Error(err))
				continue
			}
			result.EventName = &eventName
		} else if err := rows.Scan(&timeBucket, &count); err != nil {
			s.logger.Warn("Error scanning event count row", zap.Error(err))
			continue
		}

		result.Time = timeBucket
		result.Count = count
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event counts over time query: %w", err)
	}
	return results, nil
}

func (s *AnalyticsStore) GetUniqueSessionsOverTime(ctx context.Context, interval string, start, end time.Time) ([]EventTypeCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	query := fmt.Sprintf(`
		SELECT toStartOf%s(timestamp) AS time_bucket, uniq(session_id) AS unique_sessions
		FROM analytics_events
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval)

	rows, err := s.DB.Conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique sessions over time: %w", err)
	}
	defer rows.Close()

	var results []EventTypeCountByTime
	for rows.Next() {
		var timeBucket time.Time
		var sessions uint64
		if err := rows.Scan(&timeBucket, &sessions); err != nil {
			s.logger.Warn("Error scanning unique sessions row", zap.Error(err))
			continue
		}
		results = append(results, EventTypeCountByTime{Time: timeBucket, Count: sessions})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for unique sessions: %w", err)
	}
	return results, nil
}

// GetAveragePropertyValue averages a numeric event property, e.g. the
// orderTotal of Checkout Completed. Returns 0 when nothing matches.
func (s *AnalyticsStore) GetAveragePropertyValue(ctx context.Context, eventName, property string, start, end time.Time) (float64, error) {
	if property == "" {
		return 0.0, fmt.Errorf("property name for average calculation cannot be empty")
	}

	query := `
		SELECT avg(JSONExtractFloat(properties, ?))
		FROM analytics_events
		WHERE event_name = ? AND timestamp >= ? AND timestamp <= ?
	`

	var avgValue float64
	err := s.DB.Conn.QueryRow(ctx, query, property, eventName, start, end).Scan(&avgValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0.0, nil
		}
		return 0.0, fmt.Errorf("failed to query average of property '%s': %w", property, err)
	}

	// avg() over no rows is NaN, which encoding/json rejects.
	if math.IsNaN(avgValue) {
		return 0.0, nil
	}
	return avgValue, nil
}

func (s *AnalyticsStore) GetTopPages(ctx context.Context, start, end time.Time, limit uint64) ([]models.TopPageResult, error) {
	if limit == 0 {
		limit = 10
	}

	query := `
		SELECT JSONExtractString(properties, 'pageName') AS page_name, count() AS view_count
		FROM analytics_events
		WHERE event_name = ? AND timestamp >= ? AND timestamp <= ?
		GROUP BY page_name
		ORDER BY view_count DESC
		LIMIT ?
	`
	rows, err := s.DB.Conn.Query(ctx, query, models.EventPageViewed, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top pages: %w", err)
	}
	defer rows.Close()

	var results []models.TopPageResult
	for rows.Next() {
		var pageName string
		var count uint64
		if err := rows.Scan(&pageName, &count); err != nil {
			s.logger.Warn("Error scanning top pages row", zap.Error(err))
			continue
		}
		results = append(results, models.TopPageResult{PageName: pageName, Count: count})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for top pages: %w", err)
	}
	return results, nil
}
