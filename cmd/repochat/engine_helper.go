package main

import (
	"context"
	"time"

	"repochat/internal/engine"
)

const closeTimeout = 10 * time.Second

// newEngine builds an engine from the loaded config. localSources lets the
// command ingest directories and file:// URLs regardless of ingest.allowLocal.
func newEngine(ctx context.Context, localSources bool) (*engine.Engine, error) {
	cfg := *loadResult.Config
	if localSources {
		cfg.Ingest.AllowLocal = true
	}
	return engine.New(ctx, &cfg, logger, engine.Deps{})
}
