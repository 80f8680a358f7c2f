// Package idhash derives the stable identity of a translatable string.
//
// The identity of a (source, context) pair is a SipHash-2-4 digest keyed
// with a fixed key, shifted into the signed 64-bit range so it fits a
// signed integer column. The same value is exposed as an opaque
// hexadecimal checksum for URLs and file references.
//
// Source and context are concatenated without a delimiter, so
// ("ab", "c") and ("a", "bc") share an identity. This keeps checksums
// compatible with existing corpora.
package idhash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/dchest/siphash"
)

// key is the fixed 16-byte SipHash key. Changing it invalidates every
// stored identity.
const key = "Weblate Sip Hash"

const offset = uint64(1) << 63

var (
	k0 = binary.LittleEndian.Uint64([]byte(key[:8]))
	k1 = binary.LittleEndian.Uint64([]byte(key[8:]))
)

// ErrInvalidChecksum is returned for checksums that are not a 64-bit
// hexadecimal number.
var ErrInvalidChecksum = errors.New("invalid checksum")

// Hash is the signed 64-bit identity of a (source, context) pair.
type Hash int64

// Compute returns the identity of source in context.
func Compute(source, context string) Hash {
	data := make([]byte, 0, len(source)+len(context))
	data = append(data, source...)
	data = append(data, context...)
	return fromUnsigned(siphash.Hash(k0, k1, data))
}

// ComputeContext returns the identity of an entry that has no source
// string, only a context. It equals Compute("", context).
func ComputeContext(context string) Hash {
	return fromUnsigned(siphash.Hash(k0, k1, []byte(context)))
}

// ToChecksum formats h as lowercase unpadded hexadecimal of h + 2^63.
func ToChecksum(h Hash) string {
	return strconv.FormatUint(toUnsigned(h), 16)
}

// FromChecksum parses a checksum produced by ToChecksum. Uppercase
// digits and leading zeros are accepted, so "00ABC" decodes like "abc";
// ToChecksum of the result yields the canonical lowercase form.
func FromChecksum(checksum string) (Hash, error) {
	v, err := strconv.ParseUint(checksum, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChecksum, checksum)
	}
	return fromUnsigned(v), nil
}

// Checksum is shorthand for ToChecksum(h).
func (h Hash) Checksum() string {
	return ToChecksum(h)
}

// String implements fmt.Stringer.
func (h Hash) String() string {
	return strconv.FormatInt(int64(h), 10)
}

// fromUnsigned maps [0, 2^64) onto [-2^63, 2^63) by subtracting 2^63.
func fromUnsigned(v uint64) Hash {
	return Hash(int64(v - offset))
}

func toUnsigned(h Hash) uint64 {
	return uint64(h) + offset
}
