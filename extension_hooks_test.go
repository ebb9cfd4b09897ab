package publisher

import (
	"context"
	"testing"

	"github.com/goliatone/go-publisher/core"
)

func TestExtensionHooks_RegisterAndApplyPublisherPacks(t *testing.T) {
	hooks := NewExtensionHooks()
	pack := PublisherPack{
		Name: "downstream-pack",
		Publishers: []core.Publisher{
			extensionPublisher{platform: core.PlatformDiscord},
		},
	}
	if err := hooks.RegisterPublisherPack(pack); err != nil {
		t.Fatalf("register publisher pack: %v", err)
	}
	if err := hooks.RegisterPublisherPack(pack); err == nil {
		t.Fatalf("expected duplicate publisher pack registration error")
	}

	registry, err := core.NewPublisherRegistry()
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if err := hooks.ApplyPublisherPacks(registry); err != nil {
		t.Fatalf("apply publisher packs: %v", err)
	}
	if _, ok := registry.Get(core.PlatformDiscord); !ok {
		t.Fatalf("expected pack publisher registration in registry")
	}
}

func TestExtensionHooks_EventTypesAndBundles(t *testing.T) {
	hooks := NewExtensionHooks()
	if err := hooks.RegisterEventTypePack(EventTypePack{
		Name:       "pack_b",
		Platform:   core.PlatformTwitch,
		EventTypes: []string{"stream.offline"},
	}); err != nil {
		t.Fatalf("register event type pack b: %v", err)
	}
	if err := hooks.RegisterEventTypePack(EventTypePack{
		Name:       "pack_a",
		Platform:   core.PlatformTwitch,
		EventTypes: []string{"stream.online", "stream.offline"},
	}); err != nil {
		t.Fatalf("register event type pack a: %v", err)
	}
	if err := hooks.RegisterEventTypePack(EventTypePack{
		Name:       "pack_bad",
		Platform:   core.Platform("myspace"),
		EventTypes: []string{"profile.update"},
	}); err == nil {
		t.Fatalf("expected unknown platform rejection")
	}

	eventTypes := hooks.EventTypes(core.PlatformTwitch)
	if len(eventTypes) != 2 {
		t.Fatalf("expected two deduplicated event types, got %#v", eventTypes)
	}
	if eventTypes[0] != "stream.online" || eventTypes[1] != "stream.offline" {
		t.Fatalf("expected deterministic pack ordering, got %#v", eventTypes)
	}

	if err := hooks.RegisterCommandQueryBundle("scheduling_bundle", func(facade *Facade) (any, error) {
		return map[string]any{
			"dispatch_tick":  facade.Commands().DispatchTick,
			"cancel_content": facade.Commands().CancelContent,
		}, nil
	}); err != nil {
		t.Fatalf("register bundle: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("scheduling_bundle", func(*Facade) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate bundle registration error")
	}

	svc := newFacadeTestService(t, &facadeContentStore{}, &facadeJobStore{}, &facadeSubscriptionStore{})
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	bundles, err := hooks.BuildCommandQueryBundles(facade)
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	if len(bundles) != 1 {
		t.Fatalf("expected one bundle, got %d", len(bundles))
	}
	if _, ok := bundles["scheduling_bundle"]; !ok {
		t.Fatalf("expected scheduling_bundle entry in built bundles")
	}
}

type extensionPublisher struct {
	platform core.Platform
}

func (p extensionPublisher) Platform() core.Platform { return p.platform }

func (extensionPublisher) Publish(context.Context, core.PublishRequest) (core.PublishResult, error) {
	return core.PublishResult{ExternalID: "ext_1"}, nil
}
