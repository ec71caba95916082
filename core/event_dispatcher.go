package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MetadataKeyOutboxAttempts carries the number of failed deliveries on a
// claimed event.
const MetadataKeyOutboxAttempts = "_outbox_attempts"

type EventDispatcherConfig struct {
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultEventDispatcherConfig() EventDispatcherConfig {
	return EventDispatcherConfig{
		BatchSize:      50,
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     5 * time.Minute,
	}
}

func (c EventDispatcherConfig) withDefaults() EventDispatcherConfig {
	defaults := DefaultEventDispatcherConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	return c
}

// DeliveryError reports the handlers that rejected one credits event. It is
// the cause stored on the outbox row when the event is rescheduled.
type DeliveryError struct {
	EventID   string
	EventName string
	Contract  string
	Failures  map[string]error
}

// Handlers returns the failing handler names in order.
func (e *DeliveryError) Handlers() []string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *DeliveryError) Error() string {
	names := e.Handlers()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Failures[name].Error())
	}
	return fmt.Sprintf("core: %s event %q from %s rejected by %s",
		e.EventName, e.EventID, e.Contract, strings.Join(parts, "; "))
}

func (e *DeliveryError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, name := range e.Handlers() {
		out = append(out, e.Failures[name])
	}
	return out
}

// EventDispatcher delivers committed registry and marketplace events to the
// handlers subscribed to them. Every routed handler sees the event on each
// attempt, so handlers must tolerate redelivery. An event whose handlers
// keep failing is rescheduled with doubling delays and parked after
// MaxAttempts.
type EventDispatcher struct {
	store    OutboxStore
	registry HandlerRegistry
	config   EventDispatcherConfig
	now      func() time.Time
}

func NewEventDispatcher(
	store OutboxStore,
	registry HandlerRegistry,
	config EventDispatcherConfig,
) (*EventDispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("core: outbox store is required")
	}
	return &EventDispatcher{
		store:    store,
		registry: registry,
		config:   config.withDefaults(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (d *EventDispatcher) DispatchPending(ctx context.Context, batchSize int) (DispatchStats, error) {
	if d == nil || d.store == nil {
		return DispatchStats{}, fmt.Errorf("core: event dispatcher is not configured")
	}
	if batchSize <= 0 {
		batchSize = d.config.BatchSize
	}
	events, err := d.store.ClaimBatch(ctx, batchSize)
	if err != nil {
		return DispatchStats{}, err
	}

	stats := DispatchStats{Claimed: len(events)}
	var errs []error
	for _, event := range events {
		eventID := strings.TrimSpace(event.ID)
		routes := d.route(event)
		if cause := deliver(ctx, event, routes); cause != nil {
			parked, retryErr := d.reschedule(ctx, event, cause)
			if parked {
				stats.Failed++
			} else {
				stats.Retried++
			}
			errs = append(errs, cause, retryErr)
			continue
		}
		if err := d.store.Ack(ctx, eventID); err != nil {
			errs = append(errs, err)
			continue
		}
		if len(routes) == 0 {
			stats.Unrouted++
			continue
		}
		stats.Delivered++
	}
	return stats, errors.Join(errs...)
}

func (d *EventDispatcher) route(event Event) []RoutedHandler {
	if d.registry == nil {
		return nil
	}
	return d.registry.Route(event)
}

// deliver hands the event to every routed handler and collects the
// failures by handler name.
func deliver(ctx context.Context, event Event, routes []RoutedHandler) error {
	var failed *DeliveryError
	for _, route := range routes {
		if route.Handler == nil {
			continue
		}
		err := route.Handler.Handle(ctx, event)
		if err == nil {
			continue
		}
		if failed == nil {
			failed = &DeliveryError{
				EventID:   event.ID,
				EventName: event.Name,
				Contract:  event.Contract,
				Failures:  map[string]error{},
			}
		}
		failed.Failures[route.Name] = err
	}
	if failed == nil {
		return nil
	}
	return failed
}

// reschedule records the failure and reports whether the event was parked
// because it ran out of attempts.
func (d *EventDispatcher) reschedule(ctx context.Context, event Event, cause error) (bool, error) {
	attempt := deliveryAttempts(event) + 1
	if attempt >= d.config.MaxAttempts {
		return true, d.store.Retry(ctx, strings.TrimSpace(event.ID), cause, time.Time{})
	}
	return false, d.store.Retry(ctx, strings.TrimSpace(event.ID), cause, d.now().Add(d.backoff(attempt)))
}

// backoff doubles InitialBackoff per failed attempt, capped at MaxBackoff.
func (d *EventDispatcher) backoff(attempt int) time.Duration {
	delay := d.config.InitialBackoff
	for i := 1; i < attempt; i++ {
		if delay >= d.config.MaxBackoff/2 {
			return d.config.MaxBackoff
		}
		delay *= 2
	}
	return min(delay, d.config.MaxBackoff)
}

func deliveryAttempts(event Event) int {
	var attempts int
	switch raw := event.Metadata[MetadataKeyOutboxAttempts].(type) {
	case int:
		attempts = raw
	case int64:
		attempts = int(raw)
	case string:
		attempts, _ = strconv.Atoi(strings.TrimSpace(raw))
	}
	return max(attempts, 0)
}

var _ Dispatcher = (*EventDispatcher)(nil)
