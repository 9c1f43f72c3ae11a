package thumbsvc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"

	"github.com/mkrupp/gymtracker/internal/domain"
)

// ErrUnknownInterpolator is returned when an unsupported interpolation method is specified.
var ErrUnknownInterpolator = errors.New("unknown interpolator")

// maxPixels bounds the decoded size of a source image. A decoded RGBA
// bitmap takes four bytes per pixel.
const maxPixels = 64 << 20

//nolint:gochecknoglobals
var interpolMap = map[string]draw.Interpolator{
	"nearestneighbor": draw.NearestNeighbor,
	"catmullrom":      draw.CatmullRom,
	"bilinear":        draw.BiLinear,
	"approxbilinear":  draw.ApproxBiLinear,
}

func getInterpolatorByName(name string) (draw.Interpolator, error) {
	interpol, ok := interpolMap[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterpolator, name)
	}

	return interpol, nil
}

// resizeImage scales data to width keeping the aspect ratio and encodes the
// result as thumbnailType(mimeType). Images narrower than width are not
// upscaled.
func resizeImage(data []byte, mimeType string, width int, interpolator string) ([]byte, string, error) {
	interpol, err := getInterpolatorByName(interpolator)
	if err != nil {
		return nil, "", fmt.Errorf("get interpolator: %w", err)
	}

	decoder, err := getDecoderByType(mimeType)
	if err != nil {
		return nil, "", fmt.Errorf("get decoder: %w", err)
	}

	cfg, err := decoder.decodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image config: %w", err)
	}

	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", domain.ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	original, err := decoder.decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := original.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, "", fmt.Errorf("decode image: empty bounds %v", bounds)
	}

	width = min(width, bounds.Dx())
	height := max(1, bounds.Dy()*width/bounds.Dx())

	bitmap := image.NewRGBA(image.Rect(0, 0, width, height))
	interpol.Scale(bitmap, bitmap.Bounds(), original, bounds, draw.Over, nil)

	outType := thumbnailType(mimeType)

	encoder, err := getEncoderByType(outType)
	if err != nil {
		return nil, "", fmt.Errorf("get encoder: %w", err)
	}

	var buf bytes.Buffer
	if err := encoder(&buf, bitmap); err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}

	return buf.Bytes(), outType, nil
}
