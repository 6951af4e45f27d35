package webdrive

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure reported by the drive
type ErrorKind int

const (
	InvalidPath ErrorKind = iota + 1
	ResourceNotFound
	ResourceAlreadyExists
	DirectoryNotExist
	NotADirectory
	DirectoryCreationFailed
	StorageOperationFailed
	ResourceUploadFailed
	ArchiveCreationFailed
	InvalidSearchQuery
)

var kindNames = map[ErrorKind]string{
	InvalidPath:             "invalid path",
	ResourceNotFound:        "resource not found",
	ResourceAlreadyExists:   "resource already exists",
	DirectoryNotExist:       "directory does not exist",
	NotADirectory:           "not a directory",
	DirectoryCreationFailed: "directory creation failed",
	StorageOperationFailed:  "storage operation failed",
	ResourceUploadFailed:    "upload failed",
	ArchiveCreationFailed:   "archive creation failed",
	InvalidSearchQuery:      "invalid search query",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Storage sub-kinds carried in [Error.Op]
const (
	OpSave    = "save"
	OpDelete  = "delete"
	OpList    = "list"
	OpStat    = "stat"
	OpCopy    = "copy"
	OpRead    = "read"
	OpArchive = "archive"
	OpUpload  = "upload"
)

// Error is the single error type of the drive. Path is the user path (or
// object key) that triggered it.
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

// Sentinels for use with errors.Is; they match any *Error of the same kind.
var (
	ErrInvalidPath             = &Error{Kind: InvalidPath}
	ErrResourceNotFound        = &Error{Kind: ResourceNotFound}
	ErrResourceAlreadyExists   = &Error{Kind: ResourceAlreadyExists}
	ErrDirectoryNotExist       = &Error{Kind: DirectoryNotExist}
	ErrNotADirectory           = &Error{Kind: NotADirectory}
	ErrDirectoryCreationFailed = &Error{Kind: DirectoryCreationFailed}
	ErrStorageOperationFailed  = &Error{Kind: StorageOperationFailed}
	ErrResourceUploadFailed    = &Error{Kind: ResourceUploadFailed}
	ErrArchiveCreationFailed   = &Error{Kind: ArchiveCreationFailed}
	ErrInvalidSearchQuery      = &Error{Kind: InvalidSearchQuery}
)

func NewError(kind ErrorKind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// StorageError wraps a backend failure of sub-kind op on path
func StorageError(op, path string, err error) *Error {
	return &Error{Kind: StorageOperationFailed, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" %q", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, and by Op/Path when the target sets them.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return t.Path == "" || t.Path == e.Path
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
