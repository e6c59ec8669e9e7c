package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dudk/sonify"
)

// CloseColumn is the CSV column with closing prices.
const CloseColumn = "Close"

// Prices reads closing prices of a ticker from <Dir>/<TICKER>.csv.
type Prices struct {
	Ticker string
	Dir    string
}

// NewPrices returns prices source. Ticker is upper-cased.
func NewPrices(ticker, dir string) *Prices {
	return &Prices{
		Ticker: strings.ToUpper(strings.TrimSpace(ticker)),
		Dir:    dir,
	}
}

// Identity returns ticker symbol.
func (p *Prices) Identity() string {
	return p.Ticker
}

// Params returns source parameters.
func (p *Prices) Params() sonify.SourceParams {
	return sonify.SourceParams{Ticker: p.Ticker}
}

// Path returns path of prices file.
func (p *Prices) Path() string {
	return filepath.Join(p.Dir, p.Ticker+".csv")
}

// Validate checks ticker symbol and that prices file exists.
func (p *Prices) Validate(ctx context.Context) error {
	if p.Ticker == "" {
		return invalid("parse", "empty ticker")
	}
	for _, r := range p.Ticker {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '-' || r == '^') {
			return invalid("parse", "invalid ticker %q", p.Ticker)
		}
	}
	if _, err := os.Stat(p.Path()); err != nil {
		return &sonify.Error{Kind: sonify.KindInvalidSeries, Op: "parse", Err: err}
	}
	return nil
}

// Series reads the close column.
func (p *Prices) Series(ctx context.Context) (sonify.Series, error) {
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}
	f, err := os.Open(p.Path())
	if err != nil {
		return nil, &sonify.Error{Kind: sonify.KindInvalidSeries, Op: "read prices", Err: err}
	}
	defer f.Close()
	s, err := ReadCloses(f)
	if err != nil {
		return nil, &sonify.Error{Kind: sonify.KindInvalidSeries, Op: "read prices", Err: err}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ReadCloses reads close column from CSV with a header row. Rows with an
// empty close value are skipped.
func ReadCloses(r io.Reader) (sonify.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("no header")
		}
		return nil, err
	}
	column := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), CloseColumn) {
			column = i
			break
		}
	}
	if column < 0 {
		return nil, fmt.Errorf("no %s column in header %v", CloseColumn, header)
	}
	var s sonify.Series
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if column >= len(record) || strings.TrimSpace(record[column]) == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[column]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s = append(s, v)
	}
	return s, nil
}
