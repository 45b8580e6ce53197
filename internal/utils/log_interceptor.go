// Package utils provides utility functions and types shared by the SyftDrop client and server.
package utils

import (
	"bytes"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// maxPendingLine bounds a line that has not seen its newline yet
const maxPendingLine = 1024 * 1024

// LogInterceptor is an io.Writer that prefixes every line with a sequence number and a timestamp.
// Incomplete lines are held until their newline arrives or Close is called.
type LogInterceptor struct {
	target  io.Writer
	seq     uint64
	pending bytes.Buffer
	now     func() time.Time
	mu      sync.Mutex
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target, now: time.Now}
}

// Write reports len(p) on success; the prefixes are not counted.
func (i *LogInterceptor) Write(p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.pending.Write(p)
	for {
		data := i.pending.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(data[:idx], []byte{'\r'})
		if err := i.writeLine(line); err != nil {
			return 0, err
		}
		i.pending.Next(idx + 1)
	}

	if i.pending.Len() > maxPendingLine {
		if err := i.flushLocked(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close writes out a trailing incomplete line
func (i *LogInterceptor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.flushLocked()
}

func (i *LogInterceptor) flushLocked() error {
	if i.pending.Len() == 0 {
		return nil
	}
	line := bytes.Clone(i.pending.Bytes())
	i.pending.Reset()
	return i.writeLine(line)
}

func (i *LogInterceptor) writeLine(line []byte) error {
	i.seq++

	var b bytes.Buffer
	b.Grow(len(line) + 64)
	b.WriteString(slog.String("line", strconv.FormatUint(i.seq, 10)).String())
	b.WriteByte(' ')
	b.WriteString(slog.String("time", i.now().Format(time.RFC3339)).String())
	b.WriteByte(' ')
	b.Write(line)
	b.WriteByte('\n')

	_, err := i.target.Write(b.Bytes())
	return err
}
