package core

import (
	"context"
	"slices"
	"strings"
	"sync"

	glog "github.com/goliatone/go-logger/glog"
)

const DefaultLogHandlerName = "credits.log"

// EventSubscription selects events by name and emitting contract. An empty
// list matches any value.
type EventSubscription struct {
	Names     []string
	Contracts []string
}

func (s EventSubscription) Matches(event Event) bool {
	return matchesAny(s.Names, event.Name) && matchesAny(s.Contracts, event.Contract)
}

func (s EventSubscription) normalized() EventSubscription {
	return EventSubscription{
		Names:     normalizeSelectors(s.Names),
		Contracts: normalizeSelectors(s.Contracts),
	}
}

func matchesAny(selectors []string, value string) bool {
	if len(selectors) == 0 {
		return true
	}
	return slices.Contains(selectors, strings.TrimSpace(value))
}

func normalizeSelectors(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" && !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	return out
}

type subscriber struct {
	name         string
	subscription EventSubscription
	handler      EventHandler
}

// EventHandlerRegistry routes events to subscribed handlers in name order.
// Subscribing an existing name replaces both its handler and its filter.
type EventHandlerRegistry struct {
	mu          sync.RWMutex
	subscribers []subscriber
}

func NewEventHandlerRegistry() *EventHandlerRegistry {
	return &EventHandlerRegistry{}
}

func (r *EventHandlerRegistry) Register(name string, handler EventHandler) {
	r.Subscribe(name, EventSubscription{}, handler)
}

func (r *EventHandlerRegistry) Subscribe(name string, subscription EventSubscription, handler EventHandler) {
	if r == nil || handler == nil {
		return
	}
	key := strings.TrimSpace(name)
	if key == "" {
		return
	}
	entry := subscriber{name: key, subscription: subscription.normalized(), handler: handler}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx, found := slices.BinarySearchFunc(r.subscribers, key, func(s subscriber, name string) int {
		return strings.Compare(s.name, name)
	})
	if found {
		r.subscribers[idx] = entry
		return
	}
	r.subscribers = slices.Insert(r.subscribers, idx, entry)
}

func (r *EventHandlerRegistry) Route(event Event) []RoutedHandler {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RoutedHandler, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		if sub.subscription.Matches(event) {
			out = append(out, RoutedHandler{Name: sub.name, Handler: sub.handler})
		}
	}
	return out
}

// Names lists registered handler names in routing order.
func (r *EventHandlerRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		names = append(names, sub.name)
	}
	return names
}

// LogEventHandler writes every delivered event to a logger.
type LogEventHandler struct {
	logger Logger
}

func NewLogEventHandler(logger Logger) *LogEventHandler {
	return &LogEventHandler{logger: glog.Ensure(logger)}
}

func (h *LogEventHandler) Handle(ctx context.Context, event Event) error {
	if h == nil || h.logger == nil {
		return nil
	}
	logger := h.logger.WithContext(ctx)
	fields := map[string]any{
		"event_id":    event.ID,
		"event_name":  event.Name,
		"contract":    event.Contract,
		"caller":      event.Caller,
		"occurred_at": event.OccurredAt,
	}
	for key, value := range event.Payload {
		fields["payload."+key] = value
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	logger.Info("credits event delivered", flattenFields(fields)...)
	return nil
}

var (
	_ HandlerRegistry = (*EventHandlerRegistry)(nil)
	_ EventHandler    = (*LogEventHandler)(nil)
)
