package datasets

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// ToRGB copies img into an opaque *image.RGBA whose bounds start at (0, 0).
// This is the pixel format every decoded sample has before transforms run.
// Alpha is dropped without premultiplying: a translucent pixel keeps its
// straight color, a fully transparent one comes out black.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := dst.PixOffset(x, y)
			if dst.Pix[i+3] == 0xff {
				continue
			}
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = c.R, c.G, c.B, 0xff
		}
	}
	return dst
}

// Resize returns a transform scaling images to exactly width x height.
func Resize(width, height int) ImageTransform {
	return func(img image.Image) (image.Image, error) {
		if width <= 0 || height <= 0 {
			return nil, errors.Errorf("invalid resize target %dx%d", width, height)
		}
		return imaging.Resize(img, width, height, imaging.Lanczos), nil
	}
}

// ScaleShorter returns a transform scaling images so their shorter side is
// size pixels, keeping the aspect ratio.
func ScaleShorter(size int) ImageTransform {
	return func(img image.Image) (image.Image, error) {
		if size <= 0 {
			return nil, errors.Errorf("invalid scale size %d", size)
		}
		b := img.Bounds()
		if b.Dx() <= b.Dy() {
			return imaging.Resize(img, size, 0, imaging.Lanczos), nil
		}
		return imaging.Resize(img, 0, size, imaging.Lanczos), nil
	}
}

// Grayscale returns a transform that drops color information.
func Grayscale() ImageTransform {
	return func(img image.Image) (image.Image, error) {
		return imaging.Grayscale(img), nil
	}
}

// Compose chains transforms left to right. Nil entries are skipped.
func Compose(transforms ...ImageTransform) ImageTransform {
	return func(img image.Image) (image.Image, error) {
		var err error
		for _, t := range transforms {
			if t == nil {
				continue
			}
			if img, err = t(img); err != nil {
				return nil, err
			}
		}
		return img, nil
	}
}
