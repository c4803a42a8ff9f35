// Package transcode converts uploaded images to lossy WebP.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	_ "golang.org/x/image/webp"
)

const (
	ContentType = "image/webp"
	Extension   = ".webp"

	DefaultQuality = 80
)

var (
	// ErrUnsupportedMedia signals input that is not a decodable image type.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrTranscode signals a failure while decoding or encoding an accepted image.
	ErrTranscode = errors.New("transcode failed")
)

var acceptedTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// Result is a transcoded image.
type Result struct {
	Data        []byte
	ContentType string
	Ext         string
	SourceType  string
	Width       int
	Height      int
}

// Transcoder encodes every accepted image at one fixed quality.
type Transcoder struct {
	quality      float32
	maxDimension int
}

// New returns a Transcoder. quality outside 1..100 falls back to DefaultQuality;
// maxDimension <= 0 keeps the source size.
func New(quality, maxDimension int) *Transcoder {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Transcoder{quality: float32(quality), maxDimension: maxDimension}
}

// Quality reports the fixed encoder quality.
func (t *Transcoder) Quality() int {
	return int(t.quality)
}

// Transcode decodes data, normalizes its orientation and encodes it as WebP.
func (t *Transcoder) Transcode(ctx context.Context, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	detected := mimetype.Detect(data)
	if !isAccepted(detected) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedMedia, detected.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("%w: decode %s: %v", ErrTranscode, detected.String(), err)
	}

	if t.maxDimension > 0 {
		b := img.Bounds()
		if b.Dx() > t.maxDimension || b.Dy() > t.maxDimension {
			img = imaging.Fit(img, t.maxDimension, t.maxDimension, imaging.Lanczos)
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: t.quality}); err != nil {
		return Result{}, fmt.Errorf("%w: encode webp: %v", ErrTranscode, err)
	}

	bounds := img.Bounds()
	return Result{
		Data:        buf.Bytes(),
		ContentType: ContentType,
		Ext:         Extension,
		SourceType:  baseType(detected.String()),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

func isAccepted(m *mimetype.MIME) bool {
	for _, accepted := range acceptedTypes {
		if m.Is(accepted) {
			return true
		}
	}
	return false
}

func baseType(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		return mime[:i]
	}
	return mime
}
