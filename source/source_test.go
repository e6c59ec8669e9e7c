package source_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/source"
)

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, source.Linspace(0, 1, 5))
	assert.Equal(t, []float64{3}, source.Linspace(3, 5, 1))
	assert.Nil(t, source.Linspace(0, 1, 0))
	xs := source.Linspace(source.DefaultXStart, source.DefaultXEnd, source.DefaultPoints)
	assert.Len(t, xs, 400)
	assert.Equal(t, 25*math.Pi, xs[len(xs)-1])
}

func TestExpression(t *testing.T) {
	tests := []struct {
		text     string
		expected sonify.Series
	}{
		{text: "x", expected: sonify.Series{0, 1, 2, 3}},
		{text: "2*x + 1", expected: sonify.Series{1, 3, 5, 7}},
		{text: "x^2", expected: sonify.Series{0, 1, 4, 9}},
		{text: "sin(pi * x)", expected: sonify.Series{0, 0, 0, 0}},
		{text: "5", expected: sonify.Series{5, 5, 5, 5}},
	}
	for _, test := range tests {
		e := source.NewExpression(test.text, 0, 3, 4)
		require.NoError(t, e.Validate(context.Background()), test.text)
		s, err := e.Series(context.Background())
		require.NoError(t, err, test.text)
		assert.InDeltaSlice(t, test.expected, s, 1e-9, test.text)
		assert.Equal(t, test.text, e.Identity())
		assert.Equal(t, test.text, e.Params().Function)
		assert.Equal(t, 4, e.Params().NumPoints)
	}
}

func TestExpressionInvalid(t *testing.T) {
	tests := []struct {
		text   string
		points int
	}{
		{text: "sin(", points: 10},
		{text: "y + 1", points: 10},
		{text: "", points: 10},
		{text: "x", points: 1},
		{text: "log(x)", points: 10},
		{text: "\"text\"", points: 10},
	}
	for _, test := range tests {
		e := source.NewExpression(test.text, 0, 1, test.points)
		_, err := e.Series(context.Background())
		assert.ErrorIs(t, err, sonify.ErrInvalidSeries, test.text)
	}
}

func TestPrices(t *testing.T) {
	dir := t.TempDir()
	data := strings.Join([]string{
		"Date,Open,High,Low,Close,Volume",
		"2024-01-02,10,11,9,10.5,100",
		"2024-01-03,10.5,12,10,11.75,120",
		"2024-01-04,11.75,12,8,,0",
		"2024-01-05,9,9.5,8.5,9.25,90",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AAPL.csv"), []byte(data), 0o644))

	p := source.NewPrices("aapl", dir)
	assert.Equal(t, "AAPL", p.Identity())
	assert.Equal(t, "AAPL", p.Params().Ticker)
	require.NoError(t, p.Validate(context.Background()))
	s, err := p.Series(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sonify.Series{10.5, 11.75, 9.25}, s)

	for _, ticker := range []string{"", "MSFT", "../etc/passwd"} {
		err := source.NewPrices(ticker, dir).Validate(context.Background())
		assert.ErrorIs(t, err, sonify.ErrInvalidSeries, ticker)
	}
}

func TestReadCloses(t *testing.T) {
	tests := []struct {
		data string
		err  bool
	}{
		{data: "", err: true},
		{data: "Date,Open\n2024-01-02,10\n", err: true},
		{data: "Date,Close\n2024-01-02,ten\n", err: true},
		{data: "date,close\n2024-01-02,10\n", err: false},
	}
	for _, test := range tests {
		_, err := source.ReadCloses(strings.NewReader(test.data))
		if test.err {
			assert.Error(t, err, test.data)
		} else {
			assert.NoError(t, err, test.data)
		}
	}
}

func TestImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	// top row is white, middle is gray and bottom is black
	for x := 0; x < 4; x++ {
		img.SetGray(x, 0, color.Gray{Y: 255})
		img.SetGray(x, 1, color.Gray{Y: 100})
		img.SetGray(x, 2, color.Gray{Y: 0})
	}
	assert.Equal(t, sonify.Series{0, 100, 255}, source.Brightness(img))

	path := filepath.Join(t.TempDir(), "picture.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	i := source.NewImage(path)
	require.NoError(t, i.Validate(context.Background()))
	s, err := i.Series(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sonify.Series{0, 100, 255}, s)
	assert.Equal(t, source.ImageIdentity, i.Identity())

	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	assert.ErrorIs(t, i.Validate(context.Background()), sonify.ErrInvalidSeries)
}
