package format

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "golang.org/x/image/bmp"  // register BMP for DIB clipboard data
	_ "golang.org/x/image/tiff" // register TIFF for macOS screenshots

	"github.com/berrythewa/ezpaste-daemon/internal/types"
)

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	tiffLE    = []byte("II*\x00")
	tiffBE    = []byte("MM\x00*")
	bmpMagic  = []byte("BM")
	pngEncode = png.Encoder{CompressionLevel: png.DefaultCompression}
)

// ToPNG converts an in-memory bitmap (TIFF, BMP or PNG) to PNG bytes.
func ToPNG(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty bitmap", types.ErrCodec)
	}

	img, kind, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode bitmap: %w", types.ErrCodec, err)
	}

	var buf bytes.Buffer
	if err := pngEncode.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode png from %s: %w", types.ErrCodec, kind, err)
	}
	return buf.Bytes(), nil
}

// Sniff returns the image representation of data based on its magic bytes.
func Sniff(data []byte) (types.DataType, bool) {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return types.TypePNG, true
	case bytes.HasPrefix(data, tiffLE), bytes.HasPrefix(data, tiffBE):
		return types.TypeTIFF, true
	case bytes.HasPrefix(data, bmpMagic):
		return types.TypeBMP, true
	}
	return "", false
}
