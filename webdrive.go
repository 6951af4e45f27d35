// Package webdrive contains core domain types and interfaces for a per-user
// file/folder namespace ("drive") kept in a flat object-storage bucket.
//
// Directories do not exist in the backend; they are emulated with zero-byte
// marker objects whose keys end in "/". Every user owns a key prefix inside
// the shared bucket, built from the configured namespace pattern.
package webdrive

import "strconv"

// UserID identifies the owner of a namespace. Zero is never a valid owner.
type UserID int64

func (u UserID) String() string {
	return strconv.FormatInt(int64(u), 10)
}

// Valid reports whether u may own a namespace.
func (u UserID) Valid() bool {
	return u > 0
}
