package meshview

import (
	"errors"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

var errNoMaterialImage = errors.New("material has no image")

// materialTexels converts a material image into tightly packed RGBA texels,
// downscaling when either dimension exceeds maxDim (the device texture
// limit). Aspect ratio is preserved.
func materialTexels(m *Material, maxDim int) (*image.RGBA, error) {
	if m == nil || m.Image == nil {
		return nil, errNoMaterialImage
	}

	src := m.Image
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("material image has empty bounds %v", b)
	}

	if maxDim > 0 && (w > maxDim || h > maxDim) {
		scale := float64(maxDim) / float64(w)
		if h > w {
			scale = float64(maxDim) / float64(h)
		}
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
		return dst, nil
	}

	// Same size, but normalize to RGBA so texel upload is a straight copy.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Copy(dst, image.Point{}, src, b, xdraw.Src, nil)
	return dst, nil
}
