// Package imaging normalizes listing photos: sniffed, bounded, downscaled and
// re-encoded as JPEG so every stored photo has the same shape.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// MaxDimension is the maximum width or height of a stored photo.
const MaxDimension = 800

// MaxUploadBytes caps the raw upload size.
const MaxUploadBytes = 5 << 20

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 80

var (
	// ErrUnsupported is returned for anything but JPEG or PNG input.
	ErrUnsupported = errors.New("unsupported photo format")

	// ErrTooLarge is returned when an upload exceeds MaxUploadBytes.
	ErrTooLarge = errors.New("photo too large")
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Photo is a processed listing photo.
type Photo struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// ProcessPhoto reads at most MaxUploadBytes from r, checks the format by its
// bytes rather than any client header, downscales to MaxDimension and
// re-encodes as JPEG on a white background.
func ProcessPhoto(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	if detected := http.DetectContentType(data); !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s (only JPEG and PNG accepted)", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding: %v", ErrUnsupported, err)
	}

	img = fit(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Photo{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// scaledSize returns w x h shrunk to fit within maxDim, keeping the aspect
// ratio. Sizes already within bounds are returned unchanged.
func scaledSize(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}
	return max(newW, 1), max(newH, 1)
}

// fit draws img onto an opaque white canvas no larger than maxDim.
func fit(img image.Image, maxDim int) image.Image {
	src := img.Bounds()
	w, h := scaledSize(src.Dx(), src.Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}
