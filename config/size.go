package config

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
)

// ByteSize is a byte count that config files may spell as "8MiB" or "5 MB"
type ByteSize int64

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// MarshalText writes the human form when it parses back to the same value
func (b ByteSize) MarshalText() ([]byte, error) {
	s := b.String()
	if n, err := humanize.ParseBytes(s); err == nil && int64(n) == int64(b) {
		return []byte(s), nil
	}
	return fmt.Appendf(nil, "%d", int64(b)), nil
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", text, err)
	}
	*b = ByteSize(n)
	return nil
}

// UnmarshalJSON accepts both numbers and strings
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid byte size %s: %w", data, err)
	}
	return b.UnmarshalText([]byte(s))
}
