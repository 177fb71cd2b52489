package imagefetch

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// normalize makes image bytes embeddable. WebP is re-encoded as PNG, and
// images over maxBytes are downscaled and re-encoded as JPEG at decreasing
// quality until they fit. Data that is not a decodable image is an error.
func normalize(data []byte, maxBytes int64) ([]byte, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unrecognised image data: %w", err)
	}
	over := maxBytes > 0 && int64(len(data)) > maxBytes
	if format != "webp" && !over {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	if !over {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), nil
	}
	return shrink(img, maxBytes)
}

func shrink(img image.Image, maxBytes int64) ([]byte, error) {
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	// Aim for a pixel area that fits the budget at roughly 4 bytes per pixel.
	targetPixels := float64(maxBytes) / 4.0
	scale := 1.0
	if cur := float64(origW * origH); cur > targetPixels {
		scale = math.Sqrt(targetPixels / cur)
	}
	newW := max(int(math.Round(float64(origW)*scale)), 1)
	newH := max(int(math.Round(float64(origH)*scale)), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var last []byte
	for _, quality := range []int{85, 70, 55, 40} {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		last = buf.Bytes()
		if int64(len(last)) <= maxBytes {
			return last, nil
		}
	}
	return last, nil
}
