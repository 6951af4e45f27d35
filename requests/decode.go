package requests

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/internal/paths"
)

// DecodeMoveRequest reads a MoveRequestDTO from r and validates both paths.
// Malformed bodies are reported as InvalidPath errors so they map to 400.
func DecodeMoveRequest(r io.Reader) (MoveRequestDTO, error) {
	var dto MoveRequestDTO
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dto); err != nil {
		return MoveRequestDTO{}, webdrive.NewError(webdrive.InvalidPath, "", fmt.Errorf("decode move request: %w", err))
	}
	for _, p := range []string{dto.From, dto.To} {
		if err := paths.ValidatePath(p); err != nil {
			return MoveRequestDTO{}, err
		}
	}
	if err := paths.ValidateMovePair(dto.From, dto.To); err != nil {
		return MoveRequestDTO{}, err
	}
	return dto, nil
}
