package frames

import "fmt"

// InvalidGeometryError reports a frame geometry with a non-positive
// dimension. It is a configuration defect and fatal to the whole run.
type InvalidGeometryError struct {
	Width  int
	Height int
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid frame geometry %dx%d: width and height must be positive", e.Width, e.Height)
}

// SizeMismatchError is returned in strict mode when the three channel byte
// lengths disagree, or when they agree but are not a whole number of
// frames (FrameSize is set in that case).
type SizeMismatchError struct {
	Lengths   [3]int64
	FrameSize int64
}

func (e *SizeMismatchError) Error() string {
	if e.FrameSize > 0 {
		return fmt.Sprintf("channel length %d is not a multiple of frame size %d", e.Lengths[0], e.FrameSize)
	}
	return fmt.Sprintf("channel lengths differ: R=%d G=%d B=%d", e.Lengths[0], e.Lengths[1], e.Lengths[2])
}
