package logger

// Standard field keys for structured logging. Use these consistently so log
// aggregation can query by object, transfer or request.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeyRequestID  = "request_id"
	KeyOperation  = "operation"
	KeyTransferID = "transfer_id"
	KeyObjectID   = "object_id"
	KeyServerRank = "server_rank"

	KeyNDim     = "ndim"
	KeyOffset   = "offset"
	KeySize     = "size"
	KeyUnit     = "unit"
	KeyBytes    = "bytes"
	KeyRegions  = "regions"
	KeyStrategy = "strategy"
	KeyExtents  = "extents"
	KeyPath     = "path"
	KeyStatus   = "status"

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)
