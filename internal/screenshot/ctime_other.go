//go:build !darwin && !linux

package screenshot

import (
	"io/fs"
	"time"
)

func creationTime(_ string, info fs.FileInfo) time.Time {
	return info.ModTime()
}
