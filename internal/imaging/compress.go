// Package imaging bounds extracted images to a byte ceiling before they are
// sent to the structuring collaborator.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	// Registered decoders for the formats pdf images arrive in.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Options controls the quality/size search.
type Options struct {
	MaxBytes     int
	MaxWidth     int
	MaxHeight    int
	StartQuality int
	MinQuality   int
	QualityStep  int
	DPI          int
}

// DefaultOptions returns the settings used by the pipeline.
func DefaultOptions() Options {
	return Options{
		MaxBytes:     500 * 1024,
		MaxWidth:     1600,
		MaxHeight:    1600,
		StartQuality: 85,
		MinQuality:   40,
		QualityStep:  10,
		DPI:          300,
	}
}

// Result is the output of Compress. Width and Height are zero when the input
// could not be processed and Data is the original buffer.
type Result struct {
	Data    []byte
	MIME    string
	Width   int
	Height  int
	Quality int
}

// Compress decodes data, scales it into the bounding box and re-encodes it
// as JPEG, stepping the quality down until the byte ceiling is met or the
// quality floor is reached. It never fails: on any error the original buffer
// is returned with zero dimensions.
func Compress(data []byte, mime string, opts Options) Result {
	res, err := compress(data, opts)
	if err != nil {
		return Result{Data: data, MIME: mime}
	}
	return res
}

func compress(data []byte, opts Options) (Result, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)
	if w == 0 || h == 0 {
		return Result{}, fmt.Errorf("image has no pixels")
	}

	// JPEG has no alpha channel, so transparent areas are flattened onto white.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	encode := func(quality int) ([]byte, error) {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
		return SetJPEGDensity(buf.Bytes(), opts.DPI)
	}

	out, quality, err := SearchQuality(encode, opts.MaxBytes, opts.StartQuality, opts.MinQuality, opts.QualityStep)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: out, MIME: "image/jpeg", Width: w, Height: h, Quality: quality}, nil
}

// SearchQuality calls encode starting at start and stepping down by step
// until the output fits in maxBytes or the floor is reached. The returned
// quality is the one actually used; either len(out) <= maxBytes or
// quality == floor.
func SearchQuality(encode func(quality int) ([]byte, error), maxBytes, start, floor, step int) ([]byte, int, error) {
	if step <= 0 {
		step = 1
	}
	if start < floor {
		start = floor
	}
	quality := start
	for {
		out, err := encode(quality)
		if err != nil {
			return nil, 0, fmt.Errorf("encode at quality %d: %w", quality, err)
		}
		if len(out) <= maxBytes || quality == floor {
			return out, quality, nil
		}
		quality -= step
		if quality < floor {
			quality = floor
		}
	}
}

// FitWithin scales w×h down to fit maxW×maxH preserving aspect ratio. It never upscales.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if maxW <= 0 {
		maxW = w
	}
	if maxH <= 0 {
		maxH = h
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))
	return nw, nh
}
