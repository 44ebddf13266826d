//go:build !linux

package sink

import "os"

func syncFile(f *os.File) error { return f.Sync() }
