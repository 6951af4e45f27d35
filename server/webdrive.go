package server

import (
	"time"

	"github.com/brettbedarf/webdrive"
	"github.com/brettbedarf/webdrive/config"
	"github.com/brettbedarf/webdrive/internal/util"
	"github.com/brettbedarf/webdrive/mount"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// WebDrive serves one user's drive as a FUSE mount
type WebDrive struct {
	drive  mount.Drive
	user   webdrive.UserID
	cfg    *config.Config
	server *fuse.Server
}

// New creates a WebDrive for user over drive, configured by cfg.
func New(cfg *config.Config, drive mount.Drive, user webdrive.UserID) *WebDrive {
	return &WebDrive{
		drive: drive,
		user:  user,
		cfg:   cfg,
	}
}

func seconds(s float64) *time.Duration {
	d := time.Duration(s * float64(time.Second))
	return &d
}

// Options translates the config into go-fuse mount options
func (d *WebDrive) Options() *gofuse.Options {
	opts := d.cfg.MountOptions
	return &gofuse.Options{
		AttrTimeout:  seconds(d.cfg.AttrTimeout),
		EntryTimeout: seconds(d.cfg.EntryTimeout),
		MountOptions: fuse.MountOptions{
			Name:   opts.Name,
			FsName: opts.FsName,
			Debug:  opts.Debug || d.cfg.LogLvl == util.TraceLevel,
			Logger: util.NewLogLogger("FuseServer", util.TraceLevel),
		},
	}
}

// Serve mounts the drive at mountPoint and returns once the kernel has
// acknowledged the mount. Requests are served in the background until
// Unmount.
func (d *WebDrive) Serve(mountPoint string) error {
	root := mount.NewRoot(d.drive, d.user, mount.Options{DirectIO: d.cfg.DirectIO})
	srv, err := gofuse.Mount(mountPoint, root, d.Options())
	if err != nil {
		return err
	}
	d.server = srv
	return nil
}

func (d *WebDrive) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- d.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Wait blocks until the mount is unmounted
func (d *WebDrive) Wait() {
	if d.server != nil {
		d.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (d *WebDrive) Unmount() error {
	if d.server == nil {
		return nil
	}
	return d.server.Unmount()
}
