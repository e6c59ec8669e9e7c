package source

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dudk/sonify"
)

// Defaults of math mode.
const (
	DefaultPoints = 400
	DefaultXStart = 0
	DefaultXEnd   = 25 * math.Pi
)

// functions available in expressions.
var functions = map[string]interface{}{
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"sinh":  math.Sinh,
	"cosh":  math.Cosh,
	"tanh":  math.Tanh,
	"exp":   math.Exp,
	"log":   math.Log,
	"log2":  math.Log2,
	"log10": math.Log10,
	"sqrt":  math.Sqrt,
	"pi":    math.Pi,
	"e":     math.E,
}

// Expression samples a math expression of x over a range.
type Expression struct {
	Text   string
	XStart float64
	XEnd   float64
	Points int

	once    sync.Once
	program *vm.Program
	err     error
}

// NewExpression returns expression source.
func NewExpression(text string, xStart, xEnd float64, points int) *Expression {
	return &Expression{
		Text:   strings.TrimSpace(text),
		XStart: xStart,
		XEnd:   xEnd,
		Points: points,
	}
}

// Identity returns expression text.
func (e *Expression) Identity() string {
	return e.Text
}

// Params returns source parameters.
func (e *Expression) Params() sonify.SourceParams {
	return sonify.SourceParams{
		Function:  e.Text,
		XStart:    e.XStart,
		XEnd:      e.XEnd,
		NumPoints: e.Points,
	}
}

// Validate compiles the expression. Program is compiled once and reused by
// subsequent calls.
func (e *Expression) Validate(ctx context.Context) error {
	if e.Points < 2 {
		return invalid("parse", "%d points requested, at least 2 required", e.Points)
	}
	if e.Text == "" {
		return invalid("parse", "empty function")
	}
	e.once.Do(func() {
		e.program, e.err = expr.Compile(e.Text, expr.Env(env(0)), expr.AsFloat64())
	})
	if e.err != nil {
		return &sonify.Error{Kind: sonify.KindInvalidSeries, Op: "parse", Err: e.err}
	}
	return nil
}

// X returns sampled x values.
func (e *Expression) X() []float64 {
	return Linspace(e.XStart, e.XEnd, e.Points)
}

// Series evaluates the expression for every x.
func (e *Expression) Series(ctx context.Context) (sonify.Series, error) {
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}
	xs := e.X()
	s := make(sonify.Series, len(xs))
	vars := env(0)
	for i, x := range xs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vars["x"] = x
		out, err := expr.Run(e.program, vars)
		if err != nil {
			return nil, &sonify.Error{Kind: sonify.KindInvalidSeries, Op: "evaluate", Err: err}
		}
		switch v := out.(type) {
		case float64:
			s[i] = v
		case int:
			s[i] = float64(v)
		default:
			return nil, invalid("evaluate", "unexpected result %v of type %T", out, out)
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func env(x float64) map[string]interface{} {
	m := make(map[string]interface{}, len(functions)+1)
	for name, fn := range functions {
		m[name] = fn
	}
	m["x"] = x
	return m
}
