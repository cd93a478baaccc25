package cache

import (
	"context"

	"github.com/rackgrid/rackgrid/internal/application/subscription/dto"
)

// NoopStatusCache is used when redis is not configured; every read misses.
type NoopStatusCache struct{}

func (NoopStatusCache) Get(context.Context, string) (*dto.StatusDTO, int64, error) {
	return nil, 0, nil
}

func (NoopStatusCache) Set(context.Context, string, int64, *dto.StatusDTO) (bool, error) {
	return false, nil
}

func (NoopStatusCache) Invalidate(context.Context, string) error { return nil }

// NoopEventDeduplicator defers every duplicate check to the event ledger.
type NoopEventDeduplicator struct{}

func (NoopEventDeduplicator) Seen(context.Context, string) (bool, error) { return false, nil }
func (NoopEventDeduplicator) MarkSeen(context.Context, string) error     { return nil }
