package utils

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"sync"
)

// bufPool reuses byte buffers to reduce GC pressure during encoding.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// AcquireBuffer returns a reset buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer returns b to the pool.  Callers must not use b after this
// call.
func ReleaseBuffer(b *bytes.Buffer) {
	// Cap large buffers to avoid pinning excessive memory.
	if b.Cap() > 8*1024*1024 {
		return
	}
	bufPool.Put(b)
}

// CloneBytes returns a copy of b (safe for use after the source buffer is
// released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// LimitedReader wraps r and returns an error when more than max bytes are
// read.  A max of 0 disables the limit.
type LimitedReader struct {
	R   io.Reader
	Max int64
	n   int64

	exceeded bool
}

// Exceeded reports whether a read was refused because the limit was reached.
func (l *LimitedReader) Exceeded() bool { return l.exceeded }

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Max > 0 && l.n >= l.Max {
		l.exceeded = true
		return 0, io.ErrUnexpectedEOF
	}
	if l.Max > 0 {
		remain := l.Max - l.n
		if int64(len(p)) > remain {
			p = p[:remain]
		}
	}
	n, err := l.R.Read(p)
	l.n += int64(n)
	return n, err
}

// DeriveOutputPath replaces the source file's extension with ext (which must
// include the leading dot).  The output lands beside the source.
func DeriveOutputPath(sourcePath, ext string) string {
	base := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath))
	return base + strings.ToLower(ext)
}
