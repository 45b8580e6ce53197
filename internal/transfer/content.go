package transfer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Content is the raw bytes of a file being transferred. It lives only in memory and is never
// persisted; after a restart it has to be reacquired and matched against the snapshot.
type Content interface {
	io.ReaderAt
	Name() string
	Size() int64
}

// FileContent is Content backed by a local file
type FileContent struct {
	file *os.File
	path string
	name string
	size int64
}

// OpenFile opens a local file as Content
func OpenFile(path string) (*FileContent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open file: %s is a directory", path)
	}

	return &FileContent{
		file: f,
		path: path,
		name: filepath.Base(path),
		size: info.Size(),
	}, nil
}

func (c *FileContent) ReadAt(p []byte, off int64) (int, error) { return c.file.ReadAt(p, off) }
func (c *FileContent) Name() string                             { return c.name }
func (c *FileContent) Size() int64                              { return c.size }
func (c *FileContent) Path() string                             { return c.path }
func (c *FileContent) Close() error                             { return c.file.Close() }

// memoryContent is Content held in a byte slice
type memoryContent struct {
	*bytes.Reader
	name string
}

// BytesContent wraps an in-memory buffer as Content
func BytesContent(name string, data []byte) Content {
	return &memoryContent{Reader: bytes.NewReader(data), name: name}
}

func (c *memoryContent) Name() string { return c.name }

// sourcePath returns the local path of file backed content, if any
func sourcePath(c Content) string {
	if p, ok := c.(interface{ Path() string }); ok {
		return p.Path()
	}
	return ""
}

// DetectContentType sniffs the mime type from the first bytes of the content
func DetectContentType(c Content) string {
	const sniffLen = 3072
	buf := make([]byte, min(c.Size(), sniffLen))
	n, err := c.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return "application/octet-stream"
	}
	return mimetype.Detect(buf[:n]).String()
}

// matchContent checks that reacquired content is the file the snapshot was taken of
func matchContent(name string, size int64, c Content) error {
	if c == nil {
		return ErrContentUnavailable
	}
	if c.Name() != name || c.Size() != size {
		return fmt.Errorf("%w: want %s (%d bytes), got %s (%d bytes)", ErrContentMismatch, name, size, c.Name(), c.Size())
	}
	return nil
}
