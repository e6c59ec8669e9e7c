package source

import (
	"context"
	"image"
	"image/color"
	_ "image/gif"  // gif decoder
	_ "image/jpeg" // jpeg decoder
	_ "image/png"  // png decoder
	"os"

	_ "golang.org/x/image/bmp"  // bmp decoder
	_ "golang.org/x/image/tiff" // tiff decoder
	_ "golang.org/x/image/webp" // webp decoder

	"github.com/dudk/sonify"
)

// ImageIdentity is the identity of every image series.
const ImageIdentity = "translation_sonify"

// Image turns an image into a series of mean row brightness, from the
// bottom row to the top one.
type Image struct {
	Path string
}

// NewImage returns image source.
func NewImage(path string) *Image {
	return &Image{Path: path}
}

// Identity returns ImageIdentity.
func (i *Image) Identity() string {
	return ImageIdentity
}

// Params returns source parameters.
func (i *Image) Params() sonify.SourceParams {
	return sonify.SourceParams{}
}

// Validate checks that image can be decoded.
func (i *Image) Validate(ctx context.Context) error {
	f, err := os.Open(i.Path)
	if err != nil {
		return &sonify.Error{Kind: sonify.KindInvalidSeries, Op: "parse", Err: err}
	}
	defer f.Close()
	if _, _, err := image.DecodeConfig(f); err != nil {
		return &sonify.Error{Kind: sonify.KindInvalidSeries, Op: "parse", Err: err}
	}
	return nil
}

// Series decodes the image and returns brightness of its rows.
func (i *Image) Series(ctx context.Context) (sonify.Series, error) {
	f, err := os.Open(i.Path)
	if err != nil {
		return nil, &sonify.Error{Kind: sonify.KindInvalidSeries, Op: "decode image", Err: err}
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &sonify.Error{Kind: sonify.KindInvalidSeries, Op: "decode image", Err: err}
	}
	s := Brightness(img)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Brightness returns mean grayscale value in [0, 255] of every row, bottom
// row first.
func Brightness(img image.Image) sonify.Series {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	s := make(sonify.Series, 0, b.Dy())
	for y := b.Max.Y - 1; y >= b.Min.Y; y-- {
		var sum float64
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
		}
		s = append(s, sum/float64(b.Dx()))
	}
	return s
}
