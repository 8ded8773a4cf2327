package badger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hpc-io/pdc-sub004/pkg/region"
)

var errCorruptRecord = errors.New("corrupt region record")

type record struct {
	region region.Region
	unit   int
	data   []byte
}

func objectPrefix(objectID uint64) []byte {
	key := make([]byte, 0, len(recordPrefix)+8)
	key = append(key, recordPrefix...)
	return binary.BigEndian.AppendUint64(key, objectID)
}

func recordKey(objectID, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(objectPrefix(objectID), seq)
}

// encodeRecord lays out a record as
// version(1) unit(4) ndim(1) offset(8*ndim) size(8*ndim) data.
func encodeRecord(r region.Region, unit int, data []byte) []byte {
	ndim := r.NDim()
	buf := make([]byte, 0, headerFixedLen+16*ndim+len(data))
	buf = append(buf, recordVersion)
	buf = binary.BigEndian.AppendUint32(buf, uint32(unit))
	buf = append(buf, byte(ndim))
	for _, v := range r.Offset {
		buf = binary.BigEndian.AppendUint64(buf, v)
	}
	for _, v := range r.Size {
		buf = binary.BigEndian.AppendUint64(buf, v)
	}
	return append(buf, data...)
}

func decodeRecord(val []byte) (record, error) {
	if len(val) < headerFixedLen {
		return record{}, errCorruptRecord
	}
	if val[0] != recordVersion {
		return record{}, fmt.Errorf("%w: version %d", errCorruptRecord, val[0])
	}
	unit := int(binary.BigEndian.Uint32(val[1:5]))
	ndim := int(val[5])
	pos := headerFixedLen
	if len(val) < pos+16*ndim {
		return record{}, errCorruptRecord
	}

	offset := make([]uint64, ndim)
	size := make([]uint64, ndim)
	for i := 0; i < ndim; i++ {
		offset[i] = binary.BigEndian.Uint64(val[pos:])
		pos += 8
	}
	for i := 0; i < ndim; i++ {
		size[i] = binary.BigEndian.Uint64(val[pos:])
		pos += 8
	}

	r, err := region.New(offset, size)
	if err != nil {
		return record{}, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}
	data := val[pos:]
	if len(data) != r.Bytes(unit) {
		return record{}, fmt.Errorf("%w: %d data bytes for %s", errCorruptRecord, len(data), r)
	}
	return record{region: r, unit: unit, data: data}, nil
}
