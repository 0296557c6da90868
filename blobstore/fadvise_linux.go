//go:build linux

package blobstore

import (
	"os"

	"golang.org/x/sys/unix"
)

func fadviseSequential(f *os.File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
