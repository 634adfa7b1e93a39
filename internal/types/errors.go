package types

import "errors"

// Error kinds. Concrete errors wrap one of these together with the cause, so
// callers can match either with errors.Is.
var (
	// ErrCodec means the bitmap could not be decoded or the PNG not encoded.
	ErrCodec = errors.New("codec error")
	// ErrIO means a directory could not be created or a file not written.
	ErrIO = errors.New("io error")
	// ErrClipboardWrite means publishing to the clipboard failed.
	ErrClipboardWrite = errors.New("clipboard write error")
	// ErrWatchSetup means the directory watch could not be established.
	ErrWatchSetup = errors.New("watch setup error")
)
