package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/backmassage/planemux/internal/channel"
	"github.com/backmassage/planemux/internal/frames"
)

var (
	// ErrNotProcessable is returned when a session lacks a complete side.
	ErrNotProcessable = errors.New("session is not processable")
	// ErrNothingToSync is returned when the two sides share no whole frame.
	ErrNothingToSync = errors.New("no frames common to both sides")
)

// SyncPlan is the frame alignment of a processable session.
type SyncPlan struct {
	SessionID string
	Frames    map[Side]int // Frames each side's three channels support.
	Common    int          // min(Frames[L], Frames[R]); both sides are cut to this.
}

// Synchronizer aligns the two sides of a session and drives the
// interleaver once per side.
type Synchronizer struct {
	Interleaver *frames.Interleaver

	// GreenScale is applied to channel 1 before packing. 0 and 1 disable it.
	GreenScale float64
}

// Plan computes per-side frame counts from the discovered channel sizes.
// In strict mode a side whose channels disagree yields a
// *frames.SizeMismatchError naming that side. A zero common count yields
// ErrNothingToSync together with the computed plan.
func (sy *Synchronizer) Plan(s *Session) (SyncPlan, error) {
	plan := SyncPlan{SessionID: s.ID, Frames: make(map[Side]int, len(Sides))}
	if !s.Processable() {
		return plan, fmt.Errorf("%w: missing %s", ErrNotProcessable, describeMissing(s))
	}

	plan.Common = -1
	for _, side := range Sides {
		n, err := sy.Interleaver.FrameCount(s.Sides[side].Sizes(), 0)
		if err != nil {
			return plan, fmt.Errorf("side %s: %w", side, err)
		}
		plan.Frames[side] = n
		if plan.Common < 0 || n < plan.Common {
			plan.Common = n
		}
	}
	if plan.Common == 0 {
		return plan, ErrNothingToSync
	}
	return plan, nil
}

// Interleave opens the three channels of side and writes exactly
// plan.Common packed frames to w. Channel files are closed on every path.
func (sy *Synchronizer) Interleave(ctx context.Context, s *Session, plan SyncPlan, side Side, w io.Writer) (frames.Result, error) {
	sc := s.Sides[side]
	if !sc.Complete() {
		return frames.Result{}, fmt.Errorf("side %s: %w", side, ErrNotProcessable)
	}

	triple, err := channel.OpenTriple(sc.Paths())
	if err != nil {
		return frames.Result{}, err
	}
	defer triple.Close()

	srcs := [3]frames.ByteSource{triple[0], triple[1], triple[2]}
	if sy.GreenScale != 0 && sy.GreenScale != 1 {
		if srcs[1], err = frames.Scale(srcs[1], sy.GreenScale); err != nil {
			return frames.Result{}, err
		}
	}

	res, err := sy.Interleaver.Interleave(ctx, srcs, plan.Common, w)
	if err != nil {
		return res, fmt.Errorf("side %s: %w", side, err)
	}
	if res.Frames != plan.Common {
		return res, fmt.Errorf("side %s: packed %d frames, want %d (channel files changed since discovery?)",
			side, res.Frames, plan.Common)
	}
	return res, nil
}
