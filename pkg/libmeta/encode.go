package libmeta

import (
	"bytes"

	"github.com/matzehuels/plcpack/pkg/errors"
)

// Encode writes the marker followed by the property table for the given
// alternating key/value entries, numbering entries from zero. It is the
// inverse of [Decode] and is used to stamp artifacts produced by tooling.
func Encode(entries ...string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(markerBytes())
	for i, e := range entries {
		if err := putVarint(&buf, i); err != nil {
			return nil, err
		}
		if err := putVarint(&buf, len(e)); err != nil {
			return nil, err
		}
		buf.WriteString(e)
	}
	return buf.Bytes(), nil
}

func putVarint(buf *bytes.Buffer, v int) error {
	switch {
	case v < 0 || v > maxVarint:
		return errors.New(errors.ErrCodeInvalidInput, "value %d cannot be encoded", v)
	case v < 128:
		buf.WriteByte(byte(v))
	default:
		buf.WriteByte(byte(128 + v%128))
		buf.WriteByte(byte(v / 128))
	}
	return nil
}
