// Package imaging streams downscaled JPEG renditions of stored assets.
package imaging

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoding
	"io"

	"golang.org/x/image/draw"

	"github.com/rumshelf/rumshelf/internal/asset"
)

// jpegQuality is the fixed output encoding quality.
const jpegQuality = 80

// DecodeError marks an asset that exists but cannot be decoded. It is a
// server-side fault, unlike a missing asset.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode asset %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Engine decodes an asset, downscales it by a fixed factor, and re-encodes
// the result directly into the caller's sink. The encoded output is never
// materialized in memory; the sink receives bytes as the encoder produces
// them.
type Engine struct {
	assets asset.Store
	factor int
}

// NewEngine constructs an Engine with the given downscale factor.
func NewEngine(assets asset.Store, factor int) *Engine {
	if factor < 1 {
		factor = 1
	}
	return &Engine{assets: assets, factor: factor}
}

// Transform resolves key, decodes it, scales both dimensions down by the
// engine factor (truncated, at least 1x1), and JPEG-encodes into sink.
// Cancellation is observed at the asset load and during the encode; once the
// signal fires no further bytes reach the sink. The decoded pixels are
// function-scoped and released on every exit path.
func (e *Engine) Transform(ctx context.Context, key string, sink io.Writer) error {
	rc, errOpen := e.assets.Open(ctx, key)
	if errOpen != nil {
		return errOpen
	}
	defer rc.Close()

	src, _, errDecode := image.Decode(rc)
	if errDecode != nil {
		return &DecodeError{Key: key, Err: errDecode}
	}
	if errCtx := ctx.Err(); errCtx != nil {
		return errCtx
	}

	bounds := src.Bounds()
	width := bounds.Dx() / e.factor
	height := bounds.Dy() / e.factor
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	if errCtx := ctx.Err(); errCtx != nil {
		return errCtx
	}
	return jpeg.Encode(&cancelWriter{ctx: ctx, sink: sink}, dst, &jpeg.Options{Quality: jpegQuality})
}

// cancelWriter fails the write as soon as the cancellation signal fires, so
// the encoder aborts between scanline flushes instead of finishing the body.
type cancelWriter struct {
	ctx  context.Context
	sink io.Writer
}

func (w *cancelWriter) Write(p []byte) (int, error) {
	if errCtx := w.ctx.Err(); errCtx != nil {
		return 0, errCtx
	}
	return w.sink.Write(p)
}
