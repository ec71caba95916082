package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEventDispatcher_AckSuccess(t *testing.T) {
	store := &stubOutboxStore{
		claimed: []Event{{
			ID:   "evt_1",
			Name: EventCreditMinted,
		}},
	}
	registry := NewEventHandlerRegistry()
	delivered := []string{}
	registry.Register("ok", EventHandlerFunc(func(_ context.Context, event Event) error {
		delivered = append(delivered, event.Name)
		return nil
	}))

	dispatcher, err := NewEventDispatcher(store, registry, DefaultEventDispatcherConfig())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	stats, err := dispatcher.DispatchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("dispatch pending: %v", err)
	}
	if stats.Claimed != 1 || stats.Delivered != 1 || stats.Retried != 0 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(store.acked) != 1 || store.acked[0] != "evt_1" {
		t.Fatalf("expected ack for evt_1")
	}
	if len(delivered) != 1 || delivered[0] != EventCreditMinted {
		t.Fatalf("expected minted event delivered, got %v", delivered)
	}
}

func TestEventDispatcher_RetryWithBackoff(t *testing.T) {
	store := &stubOutboxStore{
		claimed: []Event{{
			ID:   "evt_retry",
			Name: EventNFTPurchased,
			Metadata: map[string]any{
				MetadataKeyOutboxAttempts: 1,
			},
		}},
	}
	registry := NewEventHandlerRegistry()
	registry.Register("fails", EventHandlerFunc(func(context.Context, Event) error {
		return errors.New("temporary")
	}))

	dispatcher, err := NewEventDispatcher(store, registry, EventDispatcherConfig{
		BatchSize:      10,
		MaxAttempts:    4,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dispatcher.now = func() time.Time { return fixed }

	stats, err := dispatcher.DispatchPending(context.Background(), 0)
	if err == nil {
		t.Fatalf("expected dispatch error")
	}
	if stats.Retried != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(store.retried) != 1 {
		t.Fatalf("expected one retry call")
	}
	if want := fixed.Add(2 * time.Second); !store.retried[0].next.Equal(want) {
		t.Fatalf("expected next attempt at %s, got %s", want, store.retried[0].next)
	}
}

func TestEventDispatcher_MaxAttemptsMarkedFailed(t *testing.T) {
	store := &stubOutboxStore{
		claimed: []Event{{
			ID:   "evt_fail",
			Name: EventCreditRetired,
			Metadata: map[string]any{
				MetadataKeyOutboxAttempts: 2,
			},
		}},
	}
	registry := NewEventHandlerRegistry()
	registry.Register("fails", EventHandlerFunc(func(context.Context, Event) error {
		return errors.New("permanent")
	}))

	dispatcher, err := NewEventDispatcher(store, registry, EventDispatcherConfig{
		BatchSize:      10,
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	stats, err := dispatcher.DispatchPending(context.Background(), 10)
	if err == nil {
		t.Fatalf("expected dispatch error")
	}
	if stats.Failed != 1 || stats.Retried != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(store.retried) != 1 {
		t.Fatalf("expected one retry/fail call")
	}
	if !store.retried[0].next.IsZero() {
		t.Fatalf("expected zero next attempt to mark failed")
	}
}

func TestEventDispatcher_RequiresStore(t *testing.T) {
	if _, err := NewEventDispatcher(nil, NewEventHandlerRegistry(), DefaultEventDispatcherConfig()); err == nil {
		t.Fatalf("expected missing store error")
	}
}

func TestEventHandlerRegistry_OrdersByNameAndReplaces(t *testing.T) {
	registry := NewEventHandlerRegistry()
	calls := []string{}
	registry.Register("b", EventHandlerFunc(func(context.Context, Event) error {
		calls = append(calls, "b")
		return nil
	}))
	registry.Register("a", EventHandlerFunc(func(context.Context, Event) error {
		calls = append(calls, "a-old")
		return nil
	}))
	registry.Register("a", EventHandlerFunc(func(context.Context, Event) error {
		calls = append(calls, "a")
		return nil
	}))
	registry.Register("", EventHandlerFunc(func(context.Context, Event) error {
		calls = append(calls, "blank")
		return nil
	}))

	for _, route := range registry.Route(Event{Name: EventCreditMinted}) {
		_ = route.Handler.Handle(context.Background(), Event{})
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("unexpected handler order: %v", calls)
	}
	if names := registry.Names(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected handler names: %v", names)
	}
}

func TestEventHandlerRegistry_RoutesBySubscription(t *testing.T) {
	registry := NewEventHandlerRegistry()
	noop := EventHandlerFunc(func(context.Context, Event) error { return nil })
	registry.Register("audit", noop)
	registry.Subscribe("retirements", EventSubscription{Names: []string{" " + EventCreditRetired + " "}}, noop)
	registry.Subscribe("sales", EventSubscription{
		Names:     []string{EventNFTPurchased, EventWithdrawal},
		Contracts: []string{DefaultMarketplaceContract},
	}, noop)

	routeNames := func(event Event) []string {
		names := []string{}
		for _, route := range registry.Route(event) {
			names = append(names, route.Name)
		}
		return names
	}

	if got := routeNames(Event{Name: EventCreditRetired, Contract: DefaultRegistryContract}); len(got) != 2 || got[0] != "audit" || got[1] != "retirements" {
		t.Fatalf("unexpected routes for retirement: %v", got)
	}
	if got := routeNames(Event{Name: EventWithdrawal, Contract: DefaultMarketplaceContract}); len(got) != 2 || got[1] != "sales" {
		t.Fatalf("unexpected routes for marketplace withdrawal: %v", got)
	}
	if got := routeNames(Event{Name: EventWithdrawal, Contract: DefaultRegistryContract}); len(got) != 1 || got[0] != "audit" {
		t.Fatalf("expected registry withdrawal to skip marketplace handler, got %v", got)
	}
}

func TestEventDispatcher_RetryCauseNamesFailingHandlers(t *testing.T) {
	store := &stubOutboxStore{
		claimed: []Event{{
			ID:       "evt_sale",
			Name:     EventNFTPurchased,
			Contract: DefaultMarketplaceContract,
		}},
	}
	registry := NewEventHandlerRegistry()
	delivered := []string{}
	registry.Register("ledger", EventHandlerFunc(func(_ context.Context, event Event) error {
		delivered = append(delivered, event.ID)
		return nil
	}))
	registry.Subscribe("webhook", EventSubscription{Names: []string{EventNFTPurchased}}, EventHandlerFunc(func(context.Context, Event) error {
		return errors.New("endpoint unavailable")
	}))
	registry.Subscribe("retirements", EventSubscription{Names: []string{EventCreditRetired}}, EventHandlerFunc(func(context.Context, Event) error {
		t.Fatalf("retirement handler should not see a purchase")
		return nil
	}))

	dispatcher, err := NewEventDispatcher(store, registry, DefaultEventDispatcherConfig())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	stats, err := dispatcher.DispatchPending(context.Background(), 10)
	if err == nil {
		t.Fatalf("expected dispatch error")
	}
	if stats.Retried != 1 || stats.Delivered != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected the healthy handler to still run, got %v", delivered)
	}
	if len(store.retried) != 1 {
		t.Fatalf("expected one retry call")
	}
	var deliveryErr *DeliveryError
	if !errors.As(store.retried[0].cause, &deliveryErr) {
		t.Fatalf("expected delivery error cause, got %T", store.retried[0].cause)
	}
	if names := deliveryErr.Handlers(); len(names) != 1 || names[0] != "webhook" {
		t.Fatalf("expected webhook as failing handler, got %v", names)
	}
	if msg := deliveryErr.Error(); !strings.Contains(msg, "webhook: endpoint unavailable") || !strings.Contains(msg, EventNFTPurchased) {
		t.Fatalf("unexpected retry cause %q", msg)
	}
}

func TestEventDispatcher_AcksUnroutedEvents(t *testing.T) {
	store := &stubOutboxStore{
		claimed: []Event{{ID: "evt_rate", Name: EventRateSet, Contract: DefaultRegistryContract}},
	}
	registry := NewEventHandlerRegistry()
	registry.Subscribe("sales", EventSubscription{Names: []string{EventNFTPurchased}}, EventHandlerFunc(func(context.Context, Event) error {
		return errors.New("unexpected delivery")
	}))

	dispatcher, err := NewEventDispatcher(store, registry, DefaultEventDispatcherConfig())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	stats, err := dispatcher.DispatchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("dispatch pending: %v", err)
	}
	if stats.Unrouted != 1 || stats.Delivered != 0 || len(store.acked) != 1 {
		t.Fatalf("expected unrouted event to be acked, got %+v acked=%v", stats, store.acked)
	}
}

func TestEventDispatcher_BackoffDoublesUpToCap(t *testing.T) {
	dispatcher, err := NewEventDispatcher(&stubOutboxStore{}, nil, EventDispatcherConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, expected := range want {
		if got := dispatcher.backoff(i + 1); got != expected {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, expected, got)
		}
	}
	if got := deliveryAttempts(Event{Metadata: map[string]any{MetadataKeyOutboxAttempts: "-3"}}); got != 0 {
		t.Fatalf("expected negative attempts to clamp to zero, got %d", got)
	}
}

func TestLogEventHandler_LogsPayload(t *testing.T) {
	logger := newCaptureLogger()
	handler := NewLogEventHandler(logger)
	err := handler.Handle(context.Background(), Event{
		ID:       "evt_log",
		Name:     EventCreditTransferred,
		Contract: DefaultRegistryContract,
		Payload:  map[string]any{"tokenId": int64(3)},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	records := logger.snapshot()
	if len(records) != 1 {
		t.Fatalf("expected one log record, got %d", len(records))
	}
	if records[0].fields["event_name"] != EventCreditTransferred {
		t.Fatalf("expected event name field, got %#v", records[0].fields)
	}
	if records[0].fields["payload.tokenId"] != int64(3) {
		t.Fatalf("expected payload field, got %#v", records[0].fields)
	}
}

type stubOutboxStore struct {
	claimed []Event
	acked   []string
	retried []retryCall
}

type retryCall struct {
	eventID string
	cause   error
	next    time.Time
}

func (s *stubOutboxStore) ClaimBatch(context.Context, int) ([]Event, error) {
	out := append([]Event(nil), s.claimed...)
	s.claimed = nil
	return out, nil
}

func (s *stubOutboxStore) Ack(_ context.Context, eventID string) error {
	s.acked = append(s.acked, eventID)
	return nil
}

func (s *stubOutboxStore) Retry(_ context.Context, eventID string, cause error, nextAttemptAt time.Time) error {
	s.retried = append(s.retried, retryCall{
		eventID: eventID,
		cause:   cause,
		next:    nextAttemptAt,
	})
	return nil
}
