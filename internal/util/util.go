package util

import (
	"github.com/dustin/go-humanize"
)

// Pointer simply returns a pointer to the supplied value
func Pointer[T any](v T) *T {
	return &v
}

// Bytes formats a byte count for logs; negative counts are unknown sizes
func Bytes(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(n))
}
