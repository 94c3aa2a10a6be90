package database

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NewNATSConn connects to the event stream broker.
func NewNATSConn(url string, logger *zap.Logger) (*nats.Conn, error) {
	if url == "" {
		return nil, fmt.Errorf("NATS_URL is not set")
	}
	conn, err := nats.Connect(url,
		nats.Name("fitfunnel-api"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	logger.Info("Successfully connected to NATS", zap.String("url", conn.ConnectedUrl()))
	return conn, nil
}
