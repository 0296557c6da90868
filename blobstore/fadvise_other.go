//go:build !linux

package blobstore

import "os"

func fadviseSequential(*os.File) error { return nil }
