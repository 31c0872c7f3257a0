package workbook

import (
	"bytes"
	"io"
	"os"
	"unicode/utf8"
)

// Signature is the container format guessed from the leading bytes of a file
type Signature string

const (
	SignatureZip     Signature = "zip"
	SignatureOLE     Signature = "ole2"
	SignatureText    Signature = "text"
	SignatureUnknown Signature = "unknown"
)

var (
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

const sniffLen = 4096

// SniffFile inspects the first bytes of the file at path. Errors are
// swallowed: an unreadable header only makes the result inconclusive.
func SniffFile(path string) Signature {
	f, err := os.Open(path)
	if err != nil {
		return SignatureUnknown
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return SignatureUnknown
	}
	return Sniff(buf[:n])
}

// Sniff classifies a header sample
func Sniff(head []byte) Signature {
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return SignatureZip
	case bytes.HasPrefix(head, oleMagic):
		return SignatureOLE
	case looksLikeText(head):
		return SignatureText
	default:
		return SignatureUnknown
	}
}

// looksLikeText rejects samples with NUL bytes or invalid UTF-8. A multi-byte
// rune cut by the sample boundary is tolerated.
func looksLikeText(head []byte) bool {
	if len(head) == 0 {
		return false
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	for i := 0; i < len(head); {
		r, size := utf8.DecodeRune(head[i:])
		if r == utf8.RuneError && size == 1 {
			return len(head)-i < utf8.UTFMax && !utf8.FullRune(head[i:])
		}
		i += size
	}
	return true
}
