package remote

import (
	"github.com/dudk/sonify"
)

// Payload is the body of a render request.
type Payload struct {
	Identity string `json:"identity"`
	sonify.SourceParams
	FPS    int       `json:"fps"`
	Series []float64 `json:"series,omitempty"`
}

// NewPayload creates payload for the request.
func NewPayload(req sonify.Request) Payload {
	return Payload{
		Identity:     req.Identity,
		SourceParams: req.Params,
		FPS:          req.FPS,
		Series:       req.Series,
	}
}

// Request converts payload back to render request.
func (p Payload) Request() sonify.Request {
	return sonify.Request{
		Identity: p.Identity,
		Params:   p.SourceParams,
		Series:   p.Series,
		FPS:      p.FPS,
	}
}
