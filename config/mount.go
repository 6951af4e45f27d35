package config

// MountOptions holds high-level settings for mounting a drive.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug  bool   // fuse debug logs
	FsName string // mount's FsName
	Name   string // mount's Name
}

const (
	DefaultFsName = "webdrive"
	DefaultName   = "webdrive"
)
