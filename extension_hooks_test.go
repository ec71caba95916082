package credits

import (
	"context"
	"testing"

	"github.com/goliatone/go-credits/core"
)

func TestExtensionHooks_RegisterAndApplyEventHandlerPacks(t *testing.T) {
	hooks := NewExtensionHooks()
	seen := []string{}
	pack := EventHandlerPack{
		Name: "audit",
		Handlers: map[string]core.EventHandler{
			"recorder": core.EventHandlerFunc(func(_ context.Context, event core.Event) error {
				seen = append(seen, event.Name)
				return nil
			}),
		},
	}
	if err := hooks.RegisterEventHandlerPack(pack); err != nil {
		t.Fatalf("register handler pack: %v", err)
	}
	if err := hooks.RegisterEventHandlerPack(pack); err == nil {
		t.Fatalf("expected duplicate handler pack registration error")
	}
	if err := hooks.RegisterEventHandlerPack(EventHandlerPack{Name: "empty"}); err == nil {
		t.Fatalf("expected empty pack error")
	}

	registry := core.NewEventHandlerRegistry()
	if err := hooks.ApplyEventHandlerPacks(registry); err != nil {
		t.Fatalf("apply handler packs: %v", err)
	}
	routes := registry.Route(core.Event{Name: core.EventCreditMinted})
	if len(routes) != 1 || routes[0].Name != "audit.recorder" {
		t.Fatalf("expected audit.recorder route, got %v", routes)
	}
	if err := routes[0].Handler.Handle(context.Background(), core.Event{Name: core.EventCreditMinted}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(seen) != 1 || seen[0] != core.EventCreditMinted {
		t.Fatalf("expected pack handler to run, got %v", seen)
	}
}

func TestExtensionHooks_PackSubscriptionFiltersEvents(t *testing.T) {
	hooks := NewExtensionHooks()
	noop := core.EventHandlerFunc(func(context.Context, core.Event) error { return nil })
	if err := hooks.RegisterEventHandlerPack(EventHandlerPack{
		Name:         "sales",
		Subscription: core.EventSubscription{Names: []string{core.EventNFTPurchased}},
		Handlers:     map[string]core.EventHandler{"notify": noop},
	}); err != nil {
		t.Fatalf("register handler pack: %v", err)
	}

	registry := core.NewEventHandlerRegistry()
	if err := hooks.ApplyEventHandlerPacks(registry); err != nil {
		t.Fatalf("apply handler packs: %v", err)
	}
	if routes := registry.Route(core.Event{Name: core.EventCreditMinted}); len(routes) != 0 {
		t.Fatalf("expected mint to bypass sales pack, got %v", routes)
	}
	if routes := registry.Route(core.Event{Name: core.EventNFTPurchased}); len(routes) != 1 || routes[0].Name != "sales.notify" {
		t.Fatalf("expected purchase routed to sales.notify, got %v", routes)
	}
}

func TestExtensionHooks_BundlesBuildAgainstFacade(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterCommandQueryBundle("retirement", func(facade *Facade) (any, error) {
		return map[string]any{
			"retire":   facade.Commands().Retire,
			"get_rate": facade.Queries().GetRate,
		}, nil
	}); err != nil {
		t.Fatalf("register bundle: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("retirement", func(*Facade) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate bundle registration error")
	}
	if names := hooks.BundleNames(); len(names) != 1 || names[0] != "retirement" {
		t.Fatalf("unexpected bundle names %v", names)
	}

	svc := newFacadeTestService(t)
	facade, err := NewFacadeFromService(svc, WithExtensionHooks(hooks))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	bundle, ok := facade.Bundle("retirement")
	if !ok {
		t.Fatalf("expected retirement bundle on facade")
	}
	if entries := bundle.(map[string]any); len(entries) != 2 {
		t.Fatalf("expected two bundle entries, got %d", len(entries))
	}
}
