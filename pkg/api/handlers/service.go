// Package handlers implements the admin API endpoints.
package handlers

import (
	"context"

	"github.com/hpc-io/pdc-sub004/pkg/cache"
	"github.com/hpc-io/pdc-sub004/pkg/payload"
	"github.com/hpc-io/pdc-sub004/pkg/transfer"
)

// RegionService is the part of *payload.Service the API uses.
type RegionService interface {
	Rank() int
	Flush(ctx context.Context, id uint64) error
	FlushAll(ctx context.Context) error
	SubmitFlush(ctx context.Context, id uint64) (uint64, error)
	Check(id uint64) (transfer.Status, error)
	Stats() payload.Stats
	CacheStats() cache.Stats
	QueueStats() transfer.QueueStats
}

var _ RegionService = (*payload.Service)(nil)
