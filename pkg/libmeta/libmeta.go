package libmeta

import (
	"bytes"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/matzehuels/plcpack/pkg/errors"
)

// Marker is the GUID that precedes the property table in a compiled library.
var Marker = uuid.MustParse("8f7e8d4c-2b1a-4f6e-9d3c-5a4b3c2d1e0f")

// maxVarint is the largest value the two-byte encoding can express.
const maxVarint = 255 + 128*254

// Properties is the decoded, ordered key/value list of a library artifact.
type Properties struct {
	entries []string
}

// Entries returns the raw alternating key, value, key, value list.
func (p *Properties) Entries() []string { return p.entries }

// Lookup returns the value stored after key, comparing keys
// case-insensitively. It returns "" when the key is absent.
func (p *Properties) Lookup(key string) string {
	for i := 0; i+1 < len(p.entries); i += 2 {
		if strings.EqualFold(p.entries[i], key) {
			return p.entries[i+1]
		}
	}
	return ""
}

// Decode locates the marker in data and reads the property table after it.
// It fails with an error coded [errors.ErrCodeDecode] if the marker is missing.
func Decode(data []byte) (*Properties, error) {
	pos := bytes.Index(data, markerBytes())
	if pos < 0 {
		return nil, errors.New(errors.ErrCodeDecode, "library marker %s not found", Marker)
	}

	d := decoder{data: data, pos: pos + len(markerBytes())}
	props := &Properties{}
	prev := -1
	for {
		index, ok := d.varint()
		if !ok {
			break
		}
		length, ok := d.varint()
		if !ok {
			break
		}
		if prev >= 0 && index != prev+1 {
			break
		}
		text, ok := d.text(length)
		if !ok {
			break
		}
		props.entries = append(props.entries, text)
		prev = index
	}
	return props, nil
}

// ReadFile decodes the property table of the artifact at path.
func ReadFile(path string) (*Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArtifactMissing, err, "read library %s", path)
	}
	return Decode(data)
}

func markerBytes() []byte {
	return []byte(Marker.String())
}

type decoder struct {
	data []byte
	pos  int
}

// varint reads the 1-or-2 byte integer: values below 128 are a single byte,
// larger ones combine with the next byte as v + 128*(next-1).
func (d *decoder) varint() (int, bool) {
	if d.pos >= len(d.data) {
		return 0, false
	}
	v := int(d.data[d.pos])
	d.pos++
	if v < 128 {
		return v, true
	}
	if d.pos >= len(d.data) {
		return 0, false
	}
	next := int(d.data[d.pos])
	d.pos++
	return v + 128*(next-1), true
}

func (d *decoder) text(n int) (string, bool) {
	if n < 0 || d.pos+n > len(d.data) {
		return "", false
	}
	s := string(d.data[d.pos : d.pos+n])
	d.pos += n
	return s, true
}
