package core

import (
	"fmt"
	"sort"
	"sync"
)

// PublisherRegistry is the closed adapter table keyed by platform. It is
// populated at startup so an unsupported platform surfaces as a
// construction error, never as a runtime string miss.
type PublisherRegistry struct {
	mu         sync.RWMutex
	publishers map[Platform]Publisher
}

func NewPublisherRegistry(publishers ...Publisher) (*PublisherRegistry, error) {
	registry := &PublisherRegistry{publishers: make(map[Platform]Publisher)}
	for _, publisher := range publishers {
		if err := registry.Register(publisher); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *PublisherRegistry) Register(publisher Publisher) error {
	if publisher == nil {
		return fmt.Errorf("core: publisher is nil")
	}
	platform, err := ParsePlatform(string(publisher.Platform()))
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.publishers[platform]; exists {
		return fmt.Errorf("core: publisher already registered: %s", platform)
	}
	r.publishers[platform] = publisher
	return nil
}

func (r *PublisherRegistry) Get(platform Platform) (Publisher, bool) {
	r.mu.RLock()
	publisher, ok := r.publishers[platform]
	r.mu.RUnlock()
	return publisher, ok
}

func (r *PublisherRegistry) Platforms() []Platform {
	r.mu.RLock()
	platforms := make([]Platform, 0, len(r.publishers))
	for platform := range r.publishers {
		platforms = append(platforms, platform)
	}
	r.mu.RUnlock()
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}
