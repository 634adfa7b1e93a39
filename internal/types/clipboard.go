package types

import "slices"

// DataType tags a clipboard representation independently of the platform's
// own type identifiers.
type DataType string

const (
	TypeText     DataType = "text"
	TypeFileURL  DataType = "file-url"
	TypeFileList DataType = "file-list"
	TypePNG      DataType = "png"
	TypeTIFF     DataType = "tiff"
	TypeBMP      DataType = "bmp"
)

// ImageTypes lists the bitmap representations in the order they are preferred
// when reading a pasted screenshot.
var ImageTypes = []DataType{TypeTIFF, TypePNG, TypeBMP}

// IsImage reports whether t is a bitmap representation.
func (t DataType) IsImage() bool {
	return slices.Contains(ImageTypes, t)
}

// UnknownToken marks a change token that could not be read back.
const UnknownToken int64 = -1

// Item is one typed representation written to the clipboard.
type Item struct {
	Type DataType
	Data []byte
}

// Snapshot is a single read of the clipboard's change token and the set of
// representations present at that token. Two snapshots with equal tokens
// describe identical content.
type Snapshot struct {
	Token int64
	Types []DataType
}

// Has reports whether the snapshot contains the given representation.
func (s Snapshot) Has(t DataType) bool {
	return slices.Contains(s.Types, t)
}

// HasImage reports whether any bitmap representation is present.
func (s Snapshot) HasImage() bool {
	for _, t := range s.Types {
		if t.IsImage() {
			return true
		}
	}
	return false
}

// HasFileReference reports whether the clipboard currently references a file.
func (s Snapshot) HasFileReference() bool {
	return s.Has(TypeFileURL) || s.Has(TypeFileList)
}

// ImageType returns the preferred bitmap representation present, if any.
func (s Snapshot) ImageType() (DataType, bool) {
	for _, t := range ImageTypes {
		if s.Has(t) {
			return t, true
		}
	}
	return "", false
}
