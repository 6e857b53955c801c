package plcproj

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// textReader strips a byte order mark and transcodes UTF-16 input to
// UTF-8. Input without a BOM passes through unchanged. Visual Studio
// writes solutions and project files with either.
func textReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(encoding.Nop.NewDecoder()))
}

// newXMLDecoder decodes project XML in any encoding its declaration names.
func newXMLDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(textReader(r))
	dec.CharsetReader = charsetReader
	return dec
}

func charsetReader(label string, in io.Reader) (io.Reader, error) {
	// textReader already produced UTF-8 for any Unicode input.
	if strings.HasPrefix(strings.ToLower(label), "utf") {
		return in, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	return enc.NewDecoder().Reader(in), nil
}
