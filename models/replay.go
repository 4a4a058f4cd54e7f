package models

import (
	"context"

	"github.com/pkg/errors"

	"github.com/smlm-ai/go-smlm/common"
	"github.com/smlm-ai/go-smlm/frames"
)

// ReplayModel serves pre-computed bundles keyed by frame index.
//
// It backs deterministic tests and callers that run inference elsewhere and
// only want the post-processing half of the pipeline. A nil entry makes the
// corresponding frame fail, which is how batch error handling is exercised.
type ReplayModel struct {
	bundles []*Bundle
	width   int
	height  int
}

// NewReplayModel creates a replay backend over the given bundles.
//
// Arguments:
//   - bundles: One bundle per frame index; nil entries poison their frame.
//
// Returns:
//   - *ReplayModel: The backend.
//   - error: ConfigError if no non-nil bundle defines the grid, ShapeError if
//     the bundles disagree in grid size.
func NewReplayModel(bundles []*Bundle) (*ReplayModel, error) {
	m := &ReplayModel{bundles: bundles}
	for _, b := range bundles {
		if b == nil {
			continue
		}
		if m.width == 0 {
			m.width, m.height = b.Width(), b.Height()
			continue
		}
		if b.Width() != m.width || b.Height() != m.height {
			return nil, common.NewShapeError("replay bundles", []int{b.Height(), b.Width()}, []int{m.height, m.width})
		}
	}
	if m.width == 0 {
		return nil, common.NewConfigError("model", "replay requires at least one bundle")
	}
	return m, nil
}

// InputWidth returns the grid width shared by the recorded bundles.
func (m *ReplayModel) InputWidth() int { return m.width }

// InputHeight returns the grid height shared by the recorded bundles.
func (m *ReplayModel) InputHeight() int { return m.height }

// Infer returns the bundle recorded for the frame's index.
func (m *ReplayModel) Infer(ctx context.Context, frame frames.Frame) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Index < 0 || frame.Index >= len(m.bundles) {
		return nil, errors.Errorf("no bundle recorded for frame %d", frame.Index)
	}
	b := m.bundles[frame.Index]
	if b == nil {
		return nil, errors.Errorf("no bundle recorded for frame %d", frame.Index)
	}
	return b, nil
}

// Close is a no-op; replay holds no native resources.
func (m *ReplayModel) Close() error { return nil }
