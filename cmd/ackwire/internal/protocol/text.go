package protocol

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Text messages travel as one byte per character (ISO-8859-1).
var textEncoding = charmap.ISO8859_1

// EncodeText converts s to its single-byte wire form. Characters outside
// ISO-8859-1 are replaced with the encoding's replacement byte.
func EncodeText(s string) []byte {
	out, err := encoding.ReplaceUnsupported(textEncoding.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

// DecodeText converts single-byte wire text back to a Go string.
func DecodeText(b []byte) string {
	out, err := textEncoding.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
