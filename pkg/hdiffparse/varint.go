package hdiffparse

import "fmt"

// maxVarintShift is the shift past which one more 7-bit group would lose
// bits off the top of a uint64; used to reject varints that overflow 64
// bits, which is treated as a fatal parse error rather than silently
// truncated.
const maxVarintShift = 57

// ReadVarUnsigned decodes the unsigned varint dialect used throughout the
// format: big-endian base-128 groups, continuation in the top bit of each
// byte.
func ReadVarUnsigned(r Reader) (uint64, error) {
	var value uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if value>>maxVarintShift != 0 {
			return 0, fmt.Errorf("%s: at offset %d: varint overflows 64 bits: %w", r.Label(), r.Position(), ErrMalformed)
		}
		value = (value << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			return value, nil
		}
	}
}

// ReadVarSigned decodes the signed tagged varint dialect: the first byte
// reserves a sign bit (0x80) and a continuation bit (0x40), the remaining
// 6 bits seed the value; subsequent bytes are unsigned-varint style 7-bit
// groups. The result is negated iff the sign bit was set.
func ReadVarSigned(r Reader) (int64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	sign := first&0x80 != 0
	hasMore := first&0x40 != 0
	value := uint64(first & 0x3f)

	for hasMore {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if value>>maxVarintShift != 0 {
			return 0, fmt.Errorf("%s: at offset %d: signed varint overflows 64 bits: %w", r.Label(), r.Position(), ErrMalformed)
		}
		value = (value << 7) | uint64(b&0x7f)
		hasMore = b&0x80 != 0
	}

	if value > 1<<63 || (!sign && value == 1<<63) {
		return 0, fmt.Errorf("%s: at offset %d: signed varint overflows int64: %w", r.Label(), r.Position(), ErrMalformed)
	}
	result := int64(value)
	if sign {
		result = -result
	}
	return result, nil
}

// mustZero reads an unsigned varint and fails with ErrMalformed unless it
// is exactly zero. Used for the six reserved header fields, which observed
// inputs always set to zero; a non-zero value is rejected outright rather
// than silently dropped, since this implementation has no way to know
// what semantics it would be discarding.
func mustZero(r Reader, fieldName string) error {
	v, err := ReadVarUnsigned(r)
	if err != nil {
		return err
	}
	if v != 0 {
		return fmt.Errorf("%s: at offset %d: reserved field %q is %d, want 0: %w", r.Label(), r.Position(), fieldName, v, ErrMalformed)
	}
	return nil
}
