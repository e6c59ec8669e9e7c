package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dudk/sonify"
)

// Stage of the pipeline.
type Stage string

// Pipeline stages in execution order, followed by terminal states.
const (
	Parse   Stage = "parse"
	Animate Stage = "animate"
	Audio   Stage = "audio"
	Combine Stage = "combine"
	Done    Stage = "done"
	Failed  Stage = "failed"
	// Cleanup isn't part of the run, it's invoked separately.
	Cleanup Stage = "cleanup"
)

// ParseStage parses stage name.
func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case Parse, Animate, Audio, Combine, Cleanup:
		return st, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Next returns the stage which follows successful s. Terminal states
// have no next stage.
func (s Stage) Next() Stage {
	switch s {
	case Parse:
		return Animate
	case Animate:
		return Audio
	case Audio:
		return Combine
	case Combine:
		return Done
	}
	return ""
}

// Terminal is true for Done and Failed.
func (s Stage) Terminal() bool {
	return s == Done || s == Failed
}

// Status of a finished stage.
type Status string

// Stage statuses.
const (
	Success Status = "success"
	Fail    Status = "fail"
)

// Result is reported by every stage.
type Result struct {
	Stage    Stage            `json:"stage"`
	Status   Status           `json:"status"`
	Kind     sonify.ErrorKind `json:"kind,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	Artifact string           `json:"artifact,omitempty"`
	Backend  string           `json:"backend,omitempty"`
	Fallback bool             `json:"fallback,omitempty"`

	err error
}

// OK is true if stage succeeded.
func (r Result) OK() bool {
	return r.Status == Success
}

// Err returns stage failure. It's nil for successful stage.
func (r Result) Err() error {
	return r.err
}

func success(stage Stage, artifact string) Result {
	return Result{Stage: stage, Status: Success, Artifact: artifact}
}

// failure wraps err into StageFailure. Result kind is the most specific
// kind of the cause.
func failure(stage Stage, err error) Result {
	kind := sonify.RootKind(err)
	if kind == sonify.KindUnknown {
		kind = sonify.KindStageFailure
	}
	return Result{
		Stage:  stage,
		Status: Fail,
		Kind:   kind,
		Reason: err.Error(),
		err:    &sonify.Error{Kind: sonify.KindStageFailure, Op: string(stage), Err: err},
	}
}

// Report is the outcome of a full run.
type Report struct {
	RunID    string   `json:"run_id"`
	Identity string   `json:"identity"`
	State    Stage    `json:"state"`
	Results  []Result `json:"results"`
	Artifact string   `json:"artifact,omitempty"`
}

// Failure returns the result of the failed stage, if any.
func (r Report) Failure() (Result, bool) {
	for _, res := range r.Results {
		if !res.OK() {
			return res, true
		}
	}
	return Result{}, false
}

// Err returns failure of the run.
func (r Report) Err() error {
	if res, ok := r.Failure(); ok {
		return res.Err()
	}
	return nil
}

// canceled is true if failure was caused by cancellation of a sibling
// stage.
func canceled(r Result) bool {
	return errors.Is(r.err, context.Canceled)
}
