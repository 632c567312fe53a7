package archive

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding names how archived bytes were turned into text.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "latin-1"
	EncodingBinary Encoding = "binary"
)

// Content is an archived file prepared for display and line diffing.
type Content struct {
	// Text is the decoded content, or a placeholder for binary data.
	Text string

	// Size is the raw length in bytes.
	Size int

	Encoding Encoding
}

// Binary reports whether Text is only a display placeholder.
func (c *Content) Binary() bool {
	return c.Encoding == EncodingBinary
}

// Placeholder returns the display text used for undecodable content.
func Placeholder(size int) string {
	return fmt.Sprintf("<Binary file - %d bytes>", size)
}

// Decode interprets data as UTF-8, then as Latin-1. Data that is not valid
// UTF-8 and contains NUL bytes is treated as binary and replaced by
// Placeholder.
func Decode(data []byte) *Content {
	c := &Content{Size: len(data)}

	switch {
	case utf8.Valid(data):
		c.Text = string(data)
		c.Encoding = EncodingUTF8
	case bytes.IndexByte(data, 0) < 0:
		text, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err == nil {
			c.Text = string(text)
			c.Encoding = EncodingLatin1
			break
		}
		fallthrough
	default:
		c.Text = Placeholder(len(data))
		c.Encoding = EncodingBinary
	}
	return c
}
