package mirror

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/drawdash/drawdash/internal/session"
)

// Config holds configuration for the NATS event mirror.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default mirror configuration.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "drawdash.rooms",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSMirror copies every room-scoped broadcast onto NATS subjects
// (<prefix>.<roomID>.<event>) for external consumers such as spectator
// feeds. Publishing is fire-and-forget; a mirror outage never stalls the
// coordinator.
type NATSMirror struct {
	nc            *nats.Conn
	subjectPrefix string
}

// New connects to NATS and returns a mirror implementing session.Mirror.
func New(config Config) (*NATSMirror, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().Str("url", config.URL).Str("prefix", config.SubjectPrefix).Msg("event mirror connected")

	return &NATSMirror{
		nc:            nc,
		subjectPrefix: config.SubjectPrefix,
	}, nil
}

// Publish mirrors one room broadcast. Implements session.Mirror.
func (m *NATSMirror) Publish(roomID string, evt session.Event) {
	envelope := session.RoomEventEnvelope{
		RoomID:    roomID,
		Event:     evt.Name,
		Timestamp: time.Now(),
		Payload:   evt.Data,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		log.Error().Err(err).Str("event", evt.Name).Msg("failed to marshal mirror envelope")
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", m.subjectPrefix, roomID, evt.Name)
	if err := m.nc.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("failed to mirror event")
	}
}

// Close drains the NATS connection.
func (m *NATSMirror) Close() {
	if err := m.nc.Drain(); err != nil {
		log.Warn().Err(err).Msg("failed to drain NATS connection")
	}
}
