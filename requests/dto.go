// Package requests holds the JSON representations a transport exchanges with
// clients of the drive, and the mapping from drive errors to HTTP statuses.
// The HTTP front end itself lives outside this module; the mount binary only
// uses [NewErrorDTO] to classify the error it exits with.
package requests

import (
	"time"

	"github.com/brettbedarf/webdrive"
)

// ResourceDTO is the JSON representation of [webdrive.Resource]
type ResourceDTO struct {
	Path         string     `json:"path"`
	Name         string     `json:"name"`
	Size         *uint64    `json:"size,omitempty"` // Only set for files
	Type         string     `json:"type"`           // FILE or DIRECTORY
	LastModified *time.Time `json:"lastModified,omitempty"`
}

func NewResourceDTO(r webdrive.Resource) ResourceDTO {
	dto := ResourceDTO{
		Path: r.Path,
		Name: r.Name,
		Type: r.Kind.String(),
	}
	if r.Kind == webdrive.KindFile {
		size := r.Size
		dto.Size = &size
	}
	if !r.LastModified.IsZero() {
		mod := r.LastModified.UTC()
		dto.LastModified = &mod
	}
	return dto
}

// NewResourceDTOs converts a listing, keeping its order. A nil listing
// becomes an empty slice so it encodes as [].
func NewResourceDTOs(rs []webdrive.Resource) []ResourceDTO {
	out := make([]ResourceDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, NewResourceDTO(r))
	}
	return out
}

// MoveRequestDTO is the body of a move/rename request
type MoveRequestDTO struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ErrorDTO is the body of a failed request
type ErrorDTO struct {
	Message string   `json:"message"`
	Kind    string   `json:"kind"`
	Path    string   `json:"path,omitempty"`
	PlanID  string   `json:"planId,omitempty"` // Set for partially applied multi-key operations
	Failed  []string `json:"failed,omitempty"` // Keys that still need a retry
}
