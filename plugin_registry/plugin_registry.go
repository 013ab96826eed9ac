package plugin_registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/serisow/vibeveed/pipeline"
	"github.com/serisow/vibeveed/services/notify_service"
)

// AssetStoreFactory builds an asset store on demand so only the selected
// backend ever touches its credentials.
type AssetStoreFactory func(ctx context.Context) (pipeline.AssetStore, error)

type PluginRegistry struct {
	assetStores map[string]AssetStoreFactory
	notifiers   map[string]notify_service.Notifier
}

func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		assetStores: make(map[string]AssetStoreFactory),
		notifiers:   make(map[string]notify_service.Notifier),
	}
}

// RegisterAssetStore registers a new asset store backend
func (pr *PluginRegistry) RegisterAssetStore(name string, factory AssetStoreFactory) {
	pr.assetStores[name] = factory
}

// NewAssetStore builds the asset store registered under name
func (pr *PluginRegistry) NewAssetStore(ctx context.Context, name string) (pipeline.AssetStore, error) {
	factory, ok := pr.assetStores[name]
	if !ok {
		return nil, fmt.Errorf("unknown asset store: %s", name)
	}
	return factory(ctx)
}

func (pr *PluginRegistry) RegisterNotifier(notifier notify_service.Notifier) {
	pr.notifiers[notifier.Name()] = notifier
}

func (pr *PluginRegistry) GetNotifier(name string) (notify_service.Notifier, bool) {
	notifier, ok := pr.notifiers[name]
	return notifier, ok
}

// Notifiers returns every registered notifier ordered by name.
func (pr *PluginRegistry) Notifiers() []notify_service.Notifier {
	names := make([]string, 0, len(pr.notifiers))
	for name := range pr.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	notifiers := make([]notify_service.Notifier, 0, len(names))
	for _, name := range names {
		notifiers = append(notifiers, pr.notifiers[name])
	}
	return notifiers
}
