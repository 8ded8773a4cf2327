package store

import (
	"context"
	"errors"

	"github.com/hpc-io/pdc-sub004/internal/logger"
	"github.com/hpc-io/pdc-sub004/internal/telemetry"
	"github.com/hpc-io/pdc-sub004/pkg/region"
)

// Selector routes region I/O by object shape: objects with dims go to the
// flat-file backend, objects without go to the record backend.
type Selector struct {
	flat    Backend
	records Backend
}

var _ Backend = (*Selector)(nil)

// NewSelector creates a selector. records may be nil, in which case
// shape-less objects are rejected with ErrShapeRequired.
func NewSelector(flat, records Backend) *Selector {
	return &Selector{flat: flat, records: records}
}

// For returns the backend that serves obj.
func (s *Selector) For(obj Object) (Backend, error) {
	if obj.HasShape() {
		return s.flat, nil
	}
	if s.records == nil {
		return nil, ErrShapeRequired
	}
	return s.records, nil
}

func (s *Selector) WriteRegion(ctx context.Context, obj Object, r region.Region, unit int, buf []byte) error {
	return s.do(ctx, OpWrite, obj, r, unit, buf)
}

func (s *Selector) ReadRegion(ctx context.Context, obj Object, r region.Region, unit int, buf []byte) error {
	return s.do(ctx, OpRead, obj, r, unit, buf)
}

func (s *Selector) do(ctx context.Context, op string, obj Object, r region.Region, unit int, buf []byte) error {
	b, err := s.For(obj)
	if err != nil {
		return err
	}

	spanName := telemetry.SpanStoreWrite
	if op == OpRead {
		spanName = telemetry.SpanStoreRead
	}
	ctx, span := telemetry.StartStoreSpan(ctx, spanName, b.Name(),
		telemetry.ObjectID(obj.ID), telemetry.Bytes(int64(len(buf))))
	defer span.End()
	span.SetAttributes(telemetry.RegionShape(r.Offset, r.Size, unit)...)

	if op == OpWrite {
		err = b.WriteRegion(ctx, obj, r, unit, buf)
	} else {
		err = b.ReadRegion(ctx, obj, r, unit, buf)
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "durable region I/O failed",
			logger.KeyOperation, op,
			logger.KeyObjectID, obj.ID,
			logger.KeyOffset, r.Offset,
			logger.KeySize, r.Size,
			logger.KeyBytes, BytesTransferred(err),
			logger.KeyError, err)
	}
	return err
}

func (s *Selector) Name() string {
	return "selector"
}

// Close closes both backends.
func (s *Selector) Close() error {
	var errs []error
	if s.flat != nil {
		errs = append(errs, s.flat.Close())
	}
	if s.records != nil {
		errs = append(errs, s.records.Close())
	}
	return errors.Join(errs...)
}
