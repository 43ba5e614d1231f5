package di

import (
	"github.com/samber/do/v2"
)

// NewContainer creates and configures the DI container with every provider
// the pipeline needs. Each Provide call registers a lazily-initialized
// singleton; nothing actually runs until the composition root in
// cmd/shelfwatchd invokes the leaves (Watcher, Scanner).
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure.
	do.Provide(injector, ProvideConfig)
	do.Provide(injector, ProvideLogger)
	do.Provide(injector, ProvideSlogLogger)
	do.Provide(injector, ProvideEvents)

	// Storage layer.
	do.Provide(injector, ProvideStore)
	do.Provide(injector, ProvideCoverStorage)
	do.Provide(injector, ProvideCoverDownloader)
	do.Provide(injector, ProvideSettleCache)

	// External-source enrichment layer.
	do.Provide(injector, ProvideAdapterChains)
	do.Provide(injector, ProvideEnrichEngine)
	do.Provide(injector, ProvideQuarantine)
	do.Provide(injector, ProvideOrchestrator)

	// Ingestion pipeline.
	do.Provide(injector, ProvideProcessor)
	do.Provide(injector, ProvideScanner)
	do.Provide(injector, ProvideWatcher)

	return injector
}
