package publisher

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-publisher/core"
)

// PublisherPack is a named set of platform publishers a plugin contributes
// to the delivery registry.
type PublisherPack struct {
	Name       string
	Publishers []core.Publisher
}

// EventTypePack declares the webhook event types a plugin wants provisioned
// for a platform.
type EventTypePack struct {
	Name       string
	Platform   core.Platform
	EventTypes []string
}

type CommandQueryBundleFactory func(facade *Facade) (any, error)

// ExtensionHooks collects downstream contributions before the engine is
// assembled: publisher packs, webhook event type packs, and command/query
// bundles keyed by name.
type ExtensionHooks struct {
	mu sync.RWMutex

	publisherPacks map[string]PublisherPack
	eventTypePacks map[string]EventTypePack
	bundles        map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		publisherPacks: map[string]PublisherPack{},
		eventTypePacks: map[string]EventTypePack{},
		bundles:        map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterPublisherPack(pack PublisherPack) error {
	if h == nil {
		return fmt.Errorf("publisher: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("publisher: publisher pack name is required")
	}
	if len(pack.Publishers) == 0 {
		return fmt.Errorf("publisher: publisher pack %q has no publishers", name)
	}

	normalized := PublisherPack{
		Name:       name,
		Publishers: append([]core.Publisher(nil), pack.Publishers...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.publisherPacks[name]; exists {
		return fmt.Errorf("publisher: publisher pack %q already registered", name)
	}
	h.publisherPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterEventTypePack(pack EventTypePack) error {
	if h == nil {
		return fmt.Errorf("publisher: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("publisher: event type pack name is required")
	}
	platform, err := core.ParsePlatform(string(pack.Platform))
	if err != nil {
		return fmt.Errorf("publisher: event type pack %q: %w", name, err)
	}
	if len(pack.EventTypes) == 0 {
		return fmt.Errorf("publisher: event type pack %q has no event types", name)
	}

	normalized := EventTypePack{
		Name:       name,
		Platform:   platform,
		EventTypes: append([]string(nil), pack.EventTypes...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.eventTypePacks[name]; exists {
		return fmt.Errorf("publisher: event type pack %q already registered", name)
	}
	h.eventTypePacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("publisher: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("publisher: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("publisher: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("publisher: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyPublisherPacks registers every contributed publisher on the registry
// in deterministic pack order.
func (h *ExtensionHooks) ApplyPublisherPacks(registry *core.PublisherRegistry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("publisher: registry is required")
	}

	for _, pack := range h.PublisherPacks() {
		for _, pub := range pack.Publishers {
			if pub == nil {
				return fmt.Errorf("publisher: publisher pack %q contains nil publisher", pack.Name)
			}
			if err := registry.Register(pub); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(facade *Facade) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if facade == nil {
		return nil, fmt.Errorf("publisher: facade is required")
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

func (h *ExtensionHooks) PublisherPacks() []PublisherPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.publisherPacks))
	for name := range h.publisherPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]PublisherPack, 0, len(names))
	for _, name := range names {
		pack := h.publisherPacks[name]
		out = append(out, PublisherPack{
			Name:       pack.Name,
			Publishers: append([]core.Publisher(nil), pack.Publishers...),
		})
	}
	return out
}

// EventTypes merges every pack's event types for a platform, deduplicated
// in pack-name order.
func (h *ExtensionHooks) EventTypes(platform core.Platform) []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	packNames := make([]string, 0, len(h.eventTypePacks))
	for name, pack := range h.eventTypePacks {
		if pack.Platform == platform {
			packNames = append(packNames, name)
		}
	}
	sort.Strings(packNames)

	seen := map[string]struct{}{}
	out := []string{}
	for _, name := range packNames {
		for _, eventType := range h.eventTypePacks[name].EventTypes {
			if _, dup := seen[eventType]; dup {
				continue
			}
			seen[eventType] = struct{}{}
			out = append(out, eventType)
		}
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
