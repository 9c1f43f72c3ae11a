package thumbsvc

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/mkrupp/gymtracker/internal/domain"
)

const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeTIFF = "image/tiff"
	MIMETypeWebP = "image/webp"
	MIMETypeGIF  = "image/gif"
)

type imageDecoder struct {
	decode       func(io.Reader) (image.Image, error)
	decodeConfig func(io.Reader) (image.Config, error)
}

//nolint:gochecknoglobals
var (
	imageDecoders = map[string]imageDecoder{
		MIMETypeJPEG: {decode: jpeg.Decode, decodeConfig: jpeg.DecodeConfig},
		MIMETypePNG:  {decode: png.Decode, decodeConfig: png.DecodeConfig},
		MIMETypeTIFF: {decode: tiff.Decode, decodeConfig: tiff.DecodeConfig},
		MIMETypeWebP: {decode: webp.Decode, decodeConfig: webp.DecodeConfig},
		MIMETypeGIF:  {decode: gif.Decode, decodeConfig: gif.DecodeConfig},
	}

	imageEncoders = map[string]func(io.Writer, image.Image) error{
		MIMETypeJPEG: func(w io.Writer, i image.Image) error { return jpeg.Encode(w, i, &jpeg.Options{Quality: 85}) },
		MIMETypeTIFF: func(w io.Writer, i image.Image) error { return tiff.Encode(w, i, nil) },
		MIMETypePNG:  png.Encode,
	}
)

// normalizeMIMEType drops parameters such as "; charset=" and lowercases.
func normalizeMIMEType(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")

	return strings.ToLower(strings.TrimSpace(mimeType))
}

// thumbnailType returns the MIME type thumbnails of mimeType are encoded as.
// Formats without an encoder are re-encoded as PNG.
func thumbnailType(mimeType string) string {
	mimeType = normalizeMIMEType(mimeType)

	if _, ok := imageEncoders[mimeType]; ok {
		return mimeType
	}

	return MIMETypePNG
}

func getDecoderByType(mimeType string) (imageDecoder, error) {
	decoder, ok := imageDecoders[normalizeMIMEType(mimeType)]
	if !ok {
		return imageDecoder{}, fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, mimeType)
	}

	return decoder, nil
}

func getEncoderByType(mimeType string) (func(io.Writer, image.Image) error, error) {
	encoder, ok := imageEncoders[normalizeMIMEType(mimeType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, mimeType)
	}

	return encoder, nil
}
