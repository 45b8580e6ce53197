package transfer

import (
	"iter"
	"slices"
)

const (
	DefaultChunkSize = int64(5 * 1024 * 1024) // S3/MinIO minimum part size
	MinChunkSize     = DefaultChunkSize
	MaxParts         = 10000
	MaxFileSize      = int64(15 * 1024 * 1024 * 1024)
)

// PartRange is the byte range [Start, End) of one part
type PartRange struct {
	PartNumber int   `json:"partNumber"`
	Start      int64 `json:"start"`
	End        int64 `json:"end"`
}

func (r PartRange) Size() int64 {
	return r.End - r.Start
}

// Parts yields the contiguous parts of a byteLength file cut into chunkSize pieces.
// byteLength >= 0 and chunkSize > 0 are preconditions; an empty file yields no parts.
func Parts(byteLength, chunkSize int64) iter.Seq[PartRange] {
	return func(yield func(PartRange) bool) {
		if chunkSize <= 0 {
			return
		}
		partNumber := 1
		for start := int64(0); start < byteLength; start += chunkSize {
			end := min(start+chunkSize, byteLength)
			if !yield(PartRange{PartNumber: partNumber, Start: start, End: end}) {
				return
			}
			partNumber++
		}
	}
}

// Slice returns all the parts of a file in part number order
func Slice(byteLength, chunkSize int64) []PartRange {
	return slices.Collect(Parts(byteLength, chunkSize))
}

// PartCount is ceil(byteLength / chunkSize)
func PartCount(byteLength, chunkSize int64) int {
	return int(divideAndCeil(byteLength, chunkSize))
}

// ChunkSizeFor returns the chunk size to use for a file: the preferred size, raised to the
// minimum and doubled until the file fits in MaxParts parts.
func ChunkSizeFor(byteLength, preferred int64) int64 {
	chunkSize := preferred
	if chunkSize < MinChunkSize {
		chunkSize = MinChunkSize
	}
	for PartCount(byteLength, chunkSize) > MaxParts {
		chunkSize *= 2
	}
	return chunkSize
}

// partRange returns the range of a single part number
func partRange(partNumber int, byteLength, chunkSize int64) PartRange {
	start := int64(partNumber-1) * chunkSize
	if start >= byteLength {
		return PartRange{PartNumber: partNumber, Start: byteLength, End: byteLength}
	}
	return PartRange{PartNumber: partNumber, Start: start, End: min(start+chunkSize, byteLength)}
}

func divideAndCeil(numerator, denominator int64) int64 {
	if denominator == 0 {
		return 0
	}
	quotient := numerator / denominator
	if numerator%denominator != 0 {
		quotient++
	}
	return quotient
}
