package webdrive

import (
	"io"
	"time"
)

// ResourceKind distinguishes the two variants of a [Resource]
type ResourceKind int

const (
	KindFile ResourceKind = iota
	KindDirectory
)

func (k ResourceKind) String() string {
	switch k {
	case KindDirectory:
		return "DIRECTORY"
	default:
		return "FILE"
	}
}

// Resource describes a file or directory in a user's drive.
// Paths are relative to the user's root.
type Resource struct {
	Path         string // Full user path, directories end in "/"
	ParentPath   string // Path of the containing directory; "" for the root
	Name         string // Last path element, directories keep their trailing "/"
	Size         uint64
	Kind         ResourceKind
	LastModified time.Time
}

func (r Resource) IsDir() bool {
	return r.Kind == KindDirectory
}

// ResourceStream is an open file. It is owned by whoever opened it and must be
// closed on every exit path.
type ResourceStream struct {
	Resource
	io.ReadCloser
}

// UploadFile is one incoming file of an upload batch. Name is relative to the
// upload's target directory and may contain "/" to imply sub-directories.
type UploadFile struct {
	Name    string
	Size    int64 // -1 when unknown
	Content io.Reader
}

// Download is a prepared response body with the metadata a transport needs to
// serve it as an attachment.
type Download struct {
	Body               io.ReadCloser
	Filename           string
	ContentDisposition string
	ContentType        string
	Size               int64 // -1 when streamed without a known length
}
