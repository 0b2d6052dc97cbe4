// Package boolean detects boolean-blind injection by injecting always-true
// and always-false conditions and comparing each response with the
// baseline. A boundary only counts when every round agrees.
package boolean

import (
	"context"
	"fmt"

	"github.com/Varunmathiazhagan/final-project-review/internal/detector"
	"github.com/Varunmathiazhagan/final-project-review/internal/engine"
	"github.com/Varunmathiazhagan/final-project-review/internal/payload"
	"github.com/Varunmathiazhagan/final-project-review/internal/technique"
	"github.com/Varunmathiazhagan/final-project-review/internal/transport"
)

// orientation records which condition reproduced the baseline.
type orientation int

const (
	unclear orientation = iota
	trueMatches
	falseMatches
)

// BooleanBlind implements the boolean-blind detector.
type BooleanBlind struct {
	diffEngine *detector.DiffEngine
	boundaries []payload.Boundary
}

var _ engine.Detector = (*BooleanBlind)(nil)

// New creates a BooleanBlind with the default DiffEngine and boundaries.
func New() *BooleanBlind {
	return &BooleanBlind{
		diffEngine: detector.NewDiffEngine(),
		boundaries: payload.DetectionBoundaries(),
	}
}

// Technique returns engine.TechniqueBoolean.
func (b *BooleanBlind) Technique() engine.Technique {
	return engine.TechniqueBoolean
}

// Test tries each boundary for BooleanRounds rounds. In every round the
// TRUE probe must look like the baseline and the FALSE probe must not (or
// the inverse), with the same orientation in all rounds. Any discordant or
// failed round rejects the boundary.
func (b *BooleanBlind) Test(ctx context.Context, req *engine.ProbeRequest) ([]engine.Finding, error) {
	if err := technique.Check(req); err != nil {
		return nil, err
	}
	rounds := max(technique.Config(req).BooleanRounds, 1)
	trueCond, falseCond := payload.Conditions()

	for _, bd := range b.boundaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		truePayload := payload.NewBuilder().
			WithBoundary(bd).
			WithCore("AND " + trueCond).
			WithTechnique(string(engine.TechniqueBoolean)).
			Build()
		falsePayload := payload.NewBuilder().
			WithBoundary(bd).
			WithCore("AND " + falseCond).
			WithTechnique(string(engine.TechniqueBoolean)).
			Build()

		o := b.confirm(ctx, req, truePayload, falsePayload, rounds)
		if o == unclear {
			continue
		}

		evidence := fmt.Sprintf("%d/%d rounds: TRUE condition (%s) matches baseline, FALSE condition (%s) differs",
			rounds, rounds, trueCond, falseCond)
		if o == falseMatches {
			evidence = fmt.Sprintf("%d/%d rounds: FALSE condition (%s) matches baseline, TRUE condition (%s) differs",
				rounds, rounds, falseCond, trueCond)
		}
		return []engine.Finding{
			engine.NewFinding(*req.Point, engine.TechniqueBoolean, engine.Signal{Rounds: rounds}, truePayload.String(), evidence),
		}, nil
	}
	return nil, nil
}

// confirm runs the rounds for one boundary and returns the orientation all
// of them agreed on, or unclear.
func (b *BooleanBlind) confirm(ctx context.Context, req *engine.ProbeRequest, tp, fp *payload.Payload, rounds int) orientation {
	agreed := unclear
	for i := 0; i < rounds; i++ {
		o, err := b.round(ctx, req, tp, fp)
		if err != nil || o == unclear {
			return unclear
		}
		if i == 0 {
			agreed = o
			continue
		}
		if o != agreed {
			return unclear
		}
	}
	return agreed
}

func (b *BooleanBlind) round(ctx context.Context, req *engine.ProbeRequest, tp, fp *payload.Payload) (orientation, error) {
	trueResp, err := technique.Send(ctx, req, tp)
	if err != nil {
		return unclear, err
	}
	falseResp, err := technique.Send(ctx, req, fp)
	if err != nil {
		return unclear, err
	}
	return b.classify(req.Point.Baseline, trueResp, falseResp), nil
}

func (b *BooleanBlind) classify(base, trueResp, falseResp *transport.Response) orientation {
	trueSame := b.diffEngine.Similar(base, trueResp)
	falseSame := b.diffEngine.Similar(base, falseResp)
	switch {
	case trueSame && !falseSame:
		return trueMatches
	case falseSame && !trueSame:
		return falseMatches
	default:
		return unclear
	}
}
