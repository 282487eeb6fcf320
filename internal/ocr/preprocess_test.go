package ocr

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func bimodal(w, h int, dark, light uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := light
			if x < w/2 {
				v = dark
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestOtsuThresholdSeparatesClasses(t *testing.T) {
	img := bimodal(20, 10, 50, 200)

	th := OtsuThreshold(img)
	if th < 50 || th >= 200 {
		t.Fatalf("Expected threshold in [50, 200), got %d", th)
	}

	out := Binarize(img, th)
	if got := out.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("Expected dark pixel to become 0, got %d", got)
	}
	if got := out.GrayAt(19, 9).Y; got != 255 {
		t.Errorf("Expected light pixel to become 255, got %d", got)
	}
}

func TestOtsuThresholdEmptyAndUniform(t *testing.T) {
	if th := OtsuThreshold(image.NewGray(image.Rect(0, 0, 0, 0))); th != 0 {
		t.Errorf("Expected 0 for empty image, got %d", th)
	}

	uniform := bimodal(4, 4, 128, 128)
	if th := OtsuThreshold(uniform); th != 0 {
		t.Errorf("Expected 0 for uniform image, got %d", th)
	}
}

func TestCloseFillsGap(t *testing.T) {
	// white stroke with a one pixel black gap in the middle
	img := image.NewGray(image.Rect(0, 0, 7, 5))
	for x := 0; x < 7; x++ {
		img.SetGray(x, 2, color.Gray{Y: 255})
	}
	img.SetGray(3, 2, color.Gray{Y: 0})

	closed := Close(img, 3)
	if got := closed.GrayAt(3, 2).Y; got != 255 {
		t.Errorf("Expected gap to be filled, got %d", got)
	}
	if got := closed.GrayAt(3, 0).Y; got != 0 {
		t.Errorf("Expected background to stay black, got %d", got)
	}
	if got := closed.GrayAt(3, 4).Y; got != 0 {
		t.Errorf("Expected bottom row to stay black, got %d", got)
	}
}

func TestCloseSizeOneIsIdentity(t *testing.T) {
	img := bimodal(5, 5, 0, 255)
	if Close(img, 1) != img {
		t.Error("Expected size 1 closing to return the input")
	}
}

func TestPreprocessProducesBinaryImage(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(10, 10, 70, 40))
	draw.Draw(rgba, rgba.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(rgba, image.Rect(20, 20, 50, 30), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	out := Preprocess(rgba)
	if out.Bounds().Dx() != 60 || out.Bounds().Dy() != 30 {
		t.Fatalf("Unexpected bounds: %v", out.Bounds())
	}
	for _, p := range out.Pix {
		if p != 0 && p != 255 {
			t.Fatalf("Expected only binary pixels, found %d", p)
		}
	}
	if out.GrayAt(0, 0).Y != 255 {
		t.Error("Expected corner background to be white")
	}
	if out.GrayAt(25, 15).Y != 0 {
		t.Error("Expected center of the black box to be black")
	}
}

func TestPreprocessAcceptsGray(t *testing.T) {
	out := Preprocess(bimodal(10, 10, 30, 220))
	if out.Bounds().Dx() != 10 {
		t.Fatalf("Unexpected bounds: %v", out.Bounds())
	}
}
