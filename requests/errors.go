package requests

import (
	"errors"
	"net/http"
	"strings"

	"github.com/brettbedarf/webdrive"
)

var kindStatus = map[webdrive.ErrorKind]int{
	webdrive.InvalidPath:             http.StatusBadRequest,
	webdrive.InvalidSearchQuery:      http.StatusBadRequest,
	webdrive.NotADirectory:           http.StatusBadRequest,
	webdrive.ResourceNotFound:        http.StatusNotFound,
	webdrive.DirectoryNotExist:       http.StatusNotFound,
	webdrive.ResourceAlreadyExists:   http.StatusConflict,
	webdrive.DirectoryCreationFailed: http.StatusInternalServerError,
	webdrive.StorageOperationFailed:  http.StatusInternalServerError,
	webdrive.ResourceUploadFailed:    http.StatusInternalServerError,
	webdrive.ArchiveCreationFailed:   http.StatusInternalServerError,
}

// HTTPStatus maps err to the status a transport should answer with.
// A multi-key operation that applied some of its steps is 207.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var partial *webdrive.PartialError
	if errors.As(err, &partial) {
		if len(partial.Failed) < partial.Total {
			return http.StatusMultiStatus
		}
		return http.StatusInternalServerError
	}
	if status, ok := kindStatus[webdrive.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// KindCode renders k as an upper snake-case code, e.g. RESOURCE_NOT_FOUND
func KindCode(k webdrive.ErrorKind) string {
	if k == 0 {
		return "INTERNAL"
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_").Replace(k.String()))
}

func NewErrorDTO(err error) ErrorDTO {
	dto := ErrorDTO{
		Message: err.Error(),
		Kind:    KindCode(webdrive.KindOf(err)),
	}
	var e *webdrive.Error
	if errors.As(err, &e) {
		dto.Path = e.Path
	}
	var partial *webdrive.PartialError
	if errors.As(err, &partial) {
		dto.PlanID = partial.PlanID
		dto.Failed = partial.FailedKeys()
	}
	return dto
}
