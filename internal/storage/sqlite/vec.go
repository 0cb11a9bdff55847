package sqlite

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var errBadVector = errors.New("malformed embedding blob")

// serializeVector converts a float32 slice to a LittleEndian byte slice.
func serializeVector(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	buf := new(bytes.Buffer)
	err := binary.Write(buf, binary.LittleEndian, vec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize vector: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeVector is the inverse of serializeVector. Empty blobs and lengths that
// are not a multiple of four bytes are rejected.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", errBadVector, len(blob))
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, vec); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadVector, err)
	}
	return vec, nil
}
