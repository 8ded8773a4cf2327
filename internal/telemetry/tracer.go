package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for data-server spans.
const (
	AttrServerRank = "pdc.server_rank"
	AttrOperation  = "pdc.operation"

	// Object and region
	AttrObjectID = "pdc.object_id"
	AttrNDim     = "pdc.region.ndim"
	AttrOffset   = "pdc.region.offset"
	AttrSize     = "pdc.region.size"
	AttrUnit     = "pdc.region.unit"
	AttrBytes    = "pdc.bytes"

	// Cache
	AttrCacheHit     = "cache.hit"
	AttrCacheRegions = "cache.regions"
	AttrCacheOutcome = "cache.outcome" // absorbed, inserted, superseded

	// Durable store
	AttrStoreType     = "store.type"
	AttrStoreStrategy = "store.strategy"
	AttrStoreExtents  = "store.extents"
	AttrStorePath     = "store.path"

	// Transfer requests
	AttrTransferID     = "transfer.id"
	AttrTransferStatus = "transfer.status"
	AttrTransferKind   = "transfer.kind"
)

// Span names.
const (
	SpanCacheWrite  = "cache.write"
	SpanCacheRead   = "cache.read"
	SpanCacheFlush  = "cache.flush"
	SpanStoreWrite  = "store.write"
	SpanStoreRead   = "store.read"
	SpanTransferRun = "transfer.run"
)

// ObjectID returns the object id attribute.
func ObjectID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrObjectID, int64(id))
}

// RegionShape returns the ndim/offset/size/unit attributes for a region.
func RegionShape(offset, size []uint64, unit int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrNDim, len(offset)),
		attribute.Int64Slice(AttrOffset, toInt64s(offset)),
		attribute.Int64Slice(AttrSize, toInt64s(size)),
		attribute.Int(AttrUnit, unit),
	}
}

// Bytes returns the byte count attribute.
func Bytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytes, n)
}

func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

func CacheRegions(n int) attribute.KeyValue {
	return attribute.Int(AttrCacheRegions, n)
}

func CacheOutcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrCacheOutcome, outcome)
}

func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

func StoreStrategy(s string) attribute.KeyValue {
	return attribute.String(AttrStoreStrategy, s)
}

func StoreExtents(n int) attribute.KeyValue {
	return attribute.Int(AttrStoreExtents, n)
}

func StorePath(p string) attribute.KeyValue {
	return attribute.String(AttrStorePath, p)
}

func TransferID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrTransferID, int64(id))
}

func TransferStatus(status string) attribute.KeyValue {
	return attribute.String(AttrTransferStatus, status)
}

func TransferKind(kind string) attribute.KeyValue {
	return attribute.String(AttrTransferKind, kind)
}

// StartCacheSpan starts a span for a cache operation on one object.
func StartCacheSpan(ctx context.Context, name string, objectID uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{ObjectID(objectID)}, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(all...))
}

// StartStoreSpan starts a span for a durable store operation.
func StartStoreSpan(ctx context.Context, name, storeType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{StoreType(storeType)}, attrs...)
	return StartSpan(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(all...))
}

// StartTransferSpan starts a span covering one asynchronous transfer request.
func StartTransferSpan(ctx context.Context, id uint64, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{TransferID(id), TransferKind(kind)}, attrs...)
	return StartSpan(ctx, SpanTransferRun, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(all...))
}

func toInt64s(v []uint64) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}
