package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"deepshield/internal/config"
)

const userAgent = "DeepShield/0.1.0"

// Event identifies a post lifecycle milestone.
type Event string

const (
	EventPostCreated       Event = "post.created"
	EventAnalysisCompleted Event = "post.analysis.completed"
	EventAnalysisFailed    Event = "post.analysis.failed"
	EventTest              Event = "test"
)

// Payload carries event fields. Keys are snake_case.
type Payload map[string]any

// Service publishes events to the configured sinks.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Close() error
}

// NewService builds a notifier for every configured sink. With no sink
// configured a noop implementation is returned.
func NewService(cfg *config.Config) (Service, error) {
	if cfg == nil {
		return noopService{}, nil
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var sinks []Service
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		sinks = append(sinks, newNtfyService(topic, timeout))
	}
	if url := strings.TrimSpace(cfg.Notifications.NATSURL); url != "" {
		publisher, err := ConnectNATS(url, cfg.Notifications.NATSSubjectPrefix, timeout)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, publisher)
	}
	switch len(sinks) {
	case 0:
		return noopService{}, nil
	case 1:
		return sinks[0], nil
	default:
		return Multi(sinks...), nil
	}
}

// Noop returns a notifier that drops every event.
func Noop() Service {
	return noopService{}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
func (noopService) Close() error                                  { return nil }

type multiService []Service

// Multi fans events out to every sink and joins their errors.
func Multi(sinks ...Service) Service {
	return multiService(sinks)
}

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiService) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return ""
	}
}
