package credits

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-credits/core"
)

// EventHandlerPack groups outbox event handlers under one name. Handlers are
// registered as "<pack>.<handler>" and share the pack subscription; an
// empty subscription receives every event.
type EventHandlerPack struct {
	Name         string
	Subscription core.EventSubscription
	Handlers     map[string]core.EventHandler
}

type CommandQueryBundleFactory func(facade *Facade) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	handlerPacks map[string]EventHandlerPack
	bundles      map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		handlerPacks: map[string]EventHandlerPack{},
		bundles:      map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterEventHandlerPack(pack EventHandlerPack) error {
	if h == nil {
		return fmt.Errorf("credits: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("credits: event handler pack name is required")
	}
	if len(pack.Handlers) == 0 {
		return fmt.Errorf("credits: event handler pack %q has no handlers", name)
	}

	normalized := EventHandlerPack{
		Name:         name,
		Subscription: pack.Subscription,
		Handlers:     make(map[string]core.EventHandler, len(pack.Handlers)),
	}
	for handlerName, handler := range pack.Handlers {
		handlerName = strings.TrimSpace(handlerName)
		if handlerName == "" {
			return fmt.Errorf("credits: event handler pack %q has an unnamed handler", name)
		}
		if handler == nil {
			return fmt.Errorf("credits: event handler pack %q contains nil handler %q", name, handlerName)
		}
		normalized.Handlers[handlerName] = handler
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.handlerPacks[name]; exists {
		return fmt.Errorf("credits: event handler pack %q already registered", name)
	}
	h.handlerPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("credits: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("credits: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("credits: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("credits: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyEventHandlerPacks subscribes every pack handler in registry.
func (h *ExtensionHooks) ApplyEventHandlerPacks(registry core.HandlerRegistry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("credits: event handler registry is required")
	}
	for _, pack := range h.EventHandlerPacks() {
		names := make([]string, 0, len(pack.Handlers))
		for name := range pack.Handlers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			registry.Subscribe(pack.Name+"."+name, pack.Subscription, pack.Handlers[name])
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(facade *Facade) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if facade == nil {
		return nil, fmt.Errorf("credits: facade is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](facade)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) EventHandlerPacks() []EventHandlerPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.handlerPacks))
	for name := range h.handlerPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]EventHandlerPack, 0, len(names))
	for _, name := range names {
		pack := h.handlerPacks[name]
		handlers := make(map[string]core.EventHandler, len(pack.Handlers))
		for key, handler := range pack.Handlers {
			handlers[key] = handler
		}
		out = append(out, EventHandlerPack{Name: pack.Name, Subscription: pack.Subscription, Handlers: handlers})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
