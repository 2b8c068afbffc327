package casagrande

import (
	"fmt"
	"math"
)

// DragState is the interactive controller state.
type DragState int

const (
	Idle DragState = iota
	DraggingKnee
	DraggingVirginPoint
)

func (d DragState) String() string {
	switch d {
	case DraggingKnee:
		return "dragging knee"
	case DraggingVirginPoint:
		return "dragging virgin point"
	default:
		return "idle"
	}
}

// ControlKind tells the knee apart from virgin-line control points.
type ControlKind int

const (
	ControlKnee ControlKind = iota
	ControlVirgin
)

// ControlID names a draggable control point. Index is only meaningful for
// virgin-line points.
type ControlID struct {
	Kind  ControlKind
	Index int
}

// KneeControl identifies the knee.
func KneeControl() ControlID { return ControlID{Kind: ControlKnee} }

// VirginControl identifies the i-th virgin-line control point.
func VirginControl(i int) ControlID { return ControlID{Kind: ControlVirgin, Index: i} }

func (c ControlID) String() string {
	if c.Kind == ControlKnee {
		return "knee"
	}
	return fmt.Sprintf("virgin point %d", c.Index+1)
}

// ControlPoint is a control point and its current position.
type ControlPoint struct {
	ID        ControlID
	AxialLoad float64
	VoidRatio float64
}

type dragState struct {
	state  DragState
	target ControlID
	lower  float64
	upper  float64

	savedKnee       KneePoint
	savedVirgin     VirginLine
	savedCandidates []float64
}

// State returns the controller state.
func (s *Session) State() DragState { return s.drag.state }

// DragTarget returns the control point being dragged.
func (s *Session) DragTarget() (ControlID, bool) {
	return s.drag.target, s.drag.state != Idle
}

// DragBounds returns the open load interval the dragged point may move in.
func (s *Session) DragBounds() (lower, upper float64, ok bool) {
	if s.drag.state == Idle {
		return 0, 0, false
	}
	return s.drag.lower, s.drag.upper, true
}

// ControlPoints lists the knee followed by the virgin-line points.
func (s *Session) ControlPoints() []ControlPoint {
	if !s.loaded {
		return nil
	}
	out := make([]ControlPoint, 0, len(s.virgin.Points)+1)
	out = append(out, ControlPoint{ID: KneeControl(), AxialLoad: s.knee.AxialLoad, VoidRatio: s.knee.VoidRatio})
	for i, p := range s.virgin.Points {
		out = append(out, ControlPoint{ID: VirginControl(i), AxialLoad: p.AxialLoad, VoidRatio: p.VoidRatio})
	}
	return out
}

// OnControlPointPressed starts dragging a control point and fixes its bounds:
// the knee moves between the first load and the lowest virgin point, virgin
// points move between the knee and the last load.
func (s *Session) OnControlPointPressed(id ControlID) error {
	if !s.loaded {
		return ErrNoSession
	}
	if s.drag.state != Idle {
		return ErrDragInProgress
	}
	d := dragState{
		target:          id,
		savedKnee:       s.knee,
		savedVirgin:     s.virgin.clone(),
		savedCandidates: s.candidates,
	}
	switch id.Kind {
	case ControlKnee:
		d.state = DraggingKnee
		d.lower = s.series.First().AxialLoad
		d.upper = s.virgin.MinLoad()
	case ControlVirgin:
		if id.Index < 0 || id.Index >= len(s.virgin.Points) {
			return fmt.Errorf("%w: %s", ErrUnknownControlPoint, id)
		}
		d.state = DraggingVirginPoint
		d.lower = s.knee.AxialLoad
		d.upper = s.series.Last().AxialLoad
	default:
		return fmt.Errorf("%w: kind %d", ErrUnknownControlPoint, id.Kind)
	}
	s.drag = d
	return nil
}

// OnPointerMoved projects the pointer load onto the fitted curve and moves
// the dragged point there. Loads outside the open drag interval are ignored
// and false is returned. Only the curve is evaluated here.
func (s *Session) OnPointerMoved(load float64) bool {
	d := &s.drag
	if d.state == Idle || math.IsNaN(load) || !(load > d.lower && load < d.upper) {
		return false
	}
	logLoad := math.Log10(load)
	voidRatio := s.curve.At(logLoad)
	switch d.state {
	case DraggingKnee:
		s.knee = KneePoint{AxialLoad: load, VoidRatio: voidRatio, Log10Load: logLoad}
	case DraggingVirginPoint:
		s.virgin.Points[d.target.Index] = SamplePoint{AxialLoad: load, VoidRatio: voidRatio}
	}
	return true
}

// CancelDrag ends the drag and puts every control point back where it was
// before the press. The estimate is untouched.
func (s *Session) CancelDrag() {
	d := s.drag
	if d.state == Idle {
		return
	}
	s.drag = dragState{}
	s.knee = d.savedKnee
	s.virgin = d.savedVirgin
	s.candidates = d.savedCandidates
}

// OnControlPointReleased ends the drag, re-derives the moved parameters and
// recomputes the estimate. On failure every control point returns to where
// it was before the press and the previous estimate stays published.
func (s *Session) OnControlPointReleased() error {
	d := s.drag
	if d.state == Idle {
		return nil
	}
	s.drag = dragState{}

	var err error
	switch d.state {
	case DraggingKnee:
		s.knee = newKneePoint(s.knee.AxialLoad, s.knee.VoidRatio)
		s.candidates = Linspace(s.knee.AxialLoad, s.series.Last().AxialLoad, len(d.savedCandidates))
	case DraggingVirginPoint:
		var m, c float64
		m, c, err = FitLogLine(s.virgin.Points)
		if err == nil {
			s.virgin.Slope, s.virgin.Intercept = m, c
		}
	}
	if err == nil {
		err = s.recomputeEstimate()
	}
	if err != nil {
		s.knee = d.savedKnee
		s.virgin = d.savedVirgin
		s.candidates = d.savedCandidates
		return &Error{Kind: kindOf(err), Stage: StageRecompute, Detail: "after moving " + d.target.String(), Err: err}
	}
	return nil
}

func kindOf(err error) error {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return err
}
