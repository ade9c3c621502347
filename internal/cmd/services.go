package main

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/drawdash/drawdash/internal/gateway"
	"github.com/drawdash/drawdash/internal/mirror"
	"github.com/drawdash/drawdash/internal/session"
)

type Services struct {
	Registry  *session.Registry
	Router    *session.Router
	Gateway   *gateway.ConnectionManager
	WSHandler *gateway.WebSocketHandler
	Mirror    *mirror.NATSMirror
}

func setupServices(config *Config) (*Services, error) {
	// Wire up dependency chain:
	// registry → router (owns the countdown engine) → gateway transport.
	registry := session.NewRegistry()

	connConfig := gateway.DefaultConnectionConfig()
	if config.Gateway.PingIntervalSec > 0 {
		connConfig.PingInterval = time.Duration(config.Gateway.PingIntervalSec) * time.Second
	}
	if config.Gateway.ReadTimeoutSec > 0 {
		connConfig.ReadTimeout = time.Duration(config.Gateway.ReadTimeoutSec) * time.Second
	}
	if config.Gateway.WriteTimeoutSec > 0 {
		connConfig.WriteTimeout = time.Duration(config.Gateway.WriteTimeoutSec) * time.Second
	}
	connectionManager := gateway.NewConnectionManager(connConfig)

	// The event mirror is optional; without a NATS URL broadcasts stay
	// in-process only.
	var eventMirror *mirror.NATSMirror
	var routerMirror session.Mirror
	if config.Mirror.URL != "" {
		mirrorConfig := mirror.DefaultConfig()
		mirrorConfig.URL = config.Mirror.URL
		mirrorConfig.SubjectPrefix = config.Mirror.SubjectPrefix

		m, err := mirror.New(mirrorConfig)
		if err != nil {
			return nil, err
		}
		eventMirror = m
		routerMirror = m
	} else {
		log.Info().Msg("event mirror disabled, no NATS URL configured")
	}

	router := session.NewRouter(session.RouterConfig{
		Registry: registry,
		Sender:   connectionManager,
		Mirror:   routerMirror,
	})
	connectionManager.SetHandler(router)

	return &Services{
		Registry:  registry,
		Router:    router,
		Gateway:   connectionManager,
		WSHandler: gateway.NewWebSocketHandler(connectionManager),
		Mirror:    eventMirror,
	}, nil
}
