//go:build darwin

package screenshot

import (
	"io/fs"
	"syscall"
	"time"
)

func creationTime(_ string, info fs.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Birthtimespec.Unix())
	}
	return info.ModTime()
}
