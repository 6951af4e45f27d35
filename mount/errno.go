package mount

import (
	"context"
	"errors"
	"syscall"

	"github.com/brettbedarf/webdrive"
)

var kindErrno = map[webdrive.ErrorKind]syscall.Errno{
	webdrive.InvalidPath:           syscall.EINVAL,
	webdrive.InvalidSearchQuery:    syscall.EINVAL,
	webdrive.ResourceNotFound:      syscall.ENOENT,
	webdrive.DirectoryNotExist:     syscall.ENOENT,
	webdrive.ResourceAlreadyExists: syscall.EEXIST,
	webdrive.NotADirectory:         syscall.ENOTDIR,
}

// Errno maps a drive error to the errno reported to the kernel.
// Anything unclassified is EIO.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return syscall.EINTR
	}
	if errno, ok := kindErrno[webdrive.KindOf(err)]; ok {
		return errno
	}
	return syscall.EIO
}
