package service

import (
	"wayfindr.app/relay/common/llm"
	"wayfindr.app/relay/internal/store"
	"wayfindr.app/relay/internal/stream"
)

type ServicesConfig struct {
	Stores    *store.Stores
	Pipeline  ChatRunner
	Embedder  llm.Embedder
	Stream    *stream.Multiplexer
	Telemetry TelemetryConfig
	Health    []HealthCheck
}

type Services struct {
	stores    *store.Stores
	pipeline  ChatRunner
	embedder  llm.Embedder
	stream    *stream.Multiplexer
	telemetry TelemetryConfig
	health    []HealthCheck
}

func NewServices(cfg ServicesConfig) *Services {
	return &Services{
		stores:    cfg.Stores,
		pipeline:  cfg.Pipeline,
		embedder:  cfg.Embedder,
		stream:    cfg.Stream,
		telemetry: cfg.Telemetry,
		health:    cfg.Health,
	}
}

func (s *Services) Chat() ChatService {
	return NewChatService(s.pipeline)
}

func (s *Services) Telemetry() TelemetryService {
	return NewTelemetryService(s.stores.Telemetry(), s.embedder, s.telemetry)
}

func (s *Services) Health() HealthService {
	return NewHealthService(0, s.health...)
}

func (s *Services) Stream() *stream.Multiplexer {
	return s.stream
}
