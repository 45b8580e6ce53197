package dropsdk

import (
	"io"
	"time"
)

// ProgressCallback receives the bytes sent so far out of total
type ProgressCallback func(sent int64, total int64)

const progressInterval = 250 * time.Millisecond

// progressReader is a wrapper around an io.Reader that tracks the number of bytes read
// and triggers a callback function.
type progressReader struct {
	reader           io.Reader
	bytesSent        int64
	totalSize        int64
	callback         ProgressCallback
	interval         time.Duration
	lastCallbackTime time.Time
}

func newProgressReader(r io.Reader, total int64, cb ProgressCallback) io.Reader {
	if cb == nil {
		return r
	}
	return &progressReader{
		reader:    r,
		totalSize: total,
		callback:  cb,
		interval:  progressInterval,
	}
}

// Read implements the io.Reader interface for progressReader.
// Callbacks are throttled to one per interval, except the final one at EOF.
func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)

	if n > 0 {
		pr.bytesSent += int64(n)
	}

	now := time.Now()
	if now.Sub(pr.lastCallbackTime) > pr.interval || err == io.EOF || pr.bytesSent == pr.totalSize {
		pr.callback(pr.bytesSent, pr.totalSize)
		pr.lastCallbackTime = now
	}

	return n, err
}
