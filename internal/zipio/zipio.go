// Package zipio holds low-level zip plumbing shared by the combiner:
// deterministic header construction, timestamp normalization, entry name
// sanitization, and reader/writer constructors wired to the klauspost
// deflate implementation.
package zipio

import (
	"archive/zip"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

// NormalizedTime is the fixed modification time used for reproducible
// archives: the zip format's DOS epoch, 1980-01-01 00:00:00 UTC.
var NormalizedTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// OpenReader opens a zip archive for reading with the deflate
// decompressor backed by klauspost/compress.
func OpenReader(path string) (*zip.ReadCloser, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	rc.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
	return rc, nil
}

// NewWriter returns a zip writer whose deflate compressor is backed by
// klauspost/compress at best compression.
func NewWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return zw
}

// CloneHeader copies the fields of src that survive a raw entry copy,
// renaming the entry to name. With normalize set, the modification time
// is pinned to NormalizedTime and timestamp extra fields are dropped.
func CloneHeader(src *zip.FileHeader, name string, normalize bool) zip.FileHeader {
	h := zip.FileHeader{
		Name:               name,
		Comment:            src.Comment,
		Method:             src.Method,
		CRC32:              src.CRC32,
		CompressedSize64:   src.CompressedSize64,
		UncompressedSize64: src.UncompressedSize64,
		ExternalAttrs:      src.ExternalAttrs,
		Modified:           src.Modified,
	}
	if normalize {
		h.Modified = NormalizedTime
	} else {
		h.Extra = src.Extra
	}
	return h
}

// NewHeader builds a header for a freshly written entry.
func NewHeader(name string, method uint16, modified time.Time, normalize bool) zip.FileHeader {
	h := zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: modified,
	}
	if normalize || h.Modified.IsZero() {
		h.Modified = NormalizedTime
	}
	h.SetMode(0o644)
	return h
}

// IsCorrupt reports whether err indicates corrupt or truncated archive
// content rather than an output-side failure.
func IsCorrupt(err error) bool {
	if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var corrupt flate.CorruptInputError
	return errors.As(err, &corrupt)
}

// SanitizeName normalizes an entry name to forward slashes with no drive
// prefix, no leading slash, and no "." or ".." segments.
func SanitizeName(p string) string {
	s := filepath.ToSlash(p)
	if len(s) > 1 && s[1] == ':' {
		s = s[2:]
	}
	s = strings.TrimLeft(s, "/")
	parts := strings.Split(s, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
		case "..":
			if n := len(stack); n > 0 {
				stack = stack[:n-1]
			}
		default:
			stack = append(stack, part)
		}
	}
	return strings.Join(stack, "/")
}
