package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"

	"patentrag/internal/domain"
)

// encodeVector stores a vector as little-endian IEEE 754 float32 values; the
// length is derived from the BLOB size on decode.
func encodeVector(vec domain.Vector) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeVector(b []byte) (domain.Vector, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: embedding blob length %d", domain.ErrIndexCorrupted, len(b))
	}
	vec := make(domain.Vector, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
