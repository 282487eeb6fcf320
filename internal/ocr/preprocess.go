package ocr

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

const (
	// blurSigma is the sigma a 5x5 Gaussian kernel derives from its size,
	// 0.3*((5-1)*0.5-1)+0.8. imaging sizes its own kernel from the sigma.
	blurSigma = 1.1

	// closeKernel is the side of the square structuring element used for
	// morphological closing.
	closeKernel = 1
)

// Preprocess prepares a photographed page for recognition: grayscale,
// Gaussian blur, Otsu binarization, then morphological closing.
func Preprocess(img image.Image) *image.Gray {
	var gray image.Image = img
	if _, ok := img.(*image.Gray); !ok {
		gray = imaging.Grayscale(img)
	}

	blurred := toGray(imaging.Blur(gray, blurSigma))
	binary := Binarize(blurred, OtsuThreshold(blurred))
	return Close(binary, closeKernel)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// OtsuThreshold returns the global threshold that maximizes the
// between-class variance of the image histogram.
func OtsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x]]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	var (
		sumBackground float64
		weightBack    int
		best          float64
		threshold     int
	)
	for t := 0; t < 256; t++ {
		weightBack += hist[t]
		if weightBack == 0 {
			continue
		}
		weightFore := total - weightBack
		if weightFore == 0 {
			break
		}

		sumBackground += float64(t * hist[t])
		meanBack := sumBackground / float64(weightBack)
		meanFore := (sumAll - sumBackground) / float64(weightFore)

		between := float64(weightBack) * float64(weightFore) * (meanBack - meanFore) * (meanBack - meanFore)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold)
}

// Binarize maps pixels above threshold to white and the rest to black.
func Binarize(img *image.Gray, threshold uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := img.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			if v > threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

// Close applies dilation followed by erosion with a size x size square
// element. Pixels outside the image are ignored.
func Close(img *image.Gray, size int) *image.Gray {
	if size <= 1 {
		return img
	}
	return morph(morph(img, size, true), size, false)
}

func morph(img *image.Gray, size int, dilate bool) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	before := (size - 1) / 2
	after := size - 1 - before

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			var v uint8
			if !dilate {
				v = 255
			}
			for dy := -before; dy <= after; dy++ {
				yy := y + dy
				if yy < 0 || yy >= b.Dy() {
					continue
				}
				for dx := -before; dx <= after; dx++ {
					xx := x + dx
					if xx < 0 || xx >= b.Dx() {
						continue
					}
					p := img.GrayAt(b.Min.X+xx, b.Min.Y+yy).Y
					if dilate && p > v {
						v = p
					} else if !dilate && p < v {
						v = p
					}
				}
			}
			out.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return out
}
