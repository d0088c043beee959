package touch

import (
	"fmt"
	"math"
)

// ContactID identifies one contact for its lifetime. It is assigned by the
// platform and may be reused once the contact has been forgotten.
type ContactID int64

// Phase is the platform touch phase reported with every snapshot.
type Phase int

const (
	PhaseBegan Phase = iota
	PhaseMoved
	PhaseStationary
	PhaseEnded
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseBegan:
		return "began"
	case PhaseMoved:
		return "moved"
	case PhaseStationary:
		return "stationary"
	case PhaseEnded:
		return "ended"
	case PhaseCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	for p := PhaseBegan; p <= PhaseCancelled; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return PhaseBegan, fmt.Errorf("unknown phase %q", s)
}

// IsTerminal reports whether the contact has left the surface.
func (p Phase) IsTerminal() bool {
	return p == PhaseEnded || p == PhaseCancelled
}

// Label is the classification assigned to a contact.
type Label int

const (
	// LabelUnknownDisconnected is the initial label while no stylus is connected.
	LabelUnknownDisconnected Label = iota
	LabelUnknown
	LabelFinger
	LabelPalm
	LabelPen
	LabelEraser
	// LabelRemoved is terminal: the contact is never revisited.
	LabelRemoved
)

var labelNames = [...]string{
	LabelUnknownDisconnected: "unknown_disconnected",
	LabelUnknown:             "unknown",
	LabelFinger:              "finger",
	LabelPalm:                "palm",
	LabelPen:                 "pen",
	LabelEraser:              "eraser",
	LabelRemoved:             "removed",
}

func (l Label) String() string {
	if l >= 0 && int(l) < len(labelNames) {
		return labelNames[l]
	}
	return fmt.Sprintf("label(%d)", int(l))
}

// ParseLabel is the inverse of Label.String.
func ParseLabel(s string) (Label, error) {
	for i, name := range labelNames {
		if name == s {
			return Label(i), nil
		}
	}
	return LabelUnknown, fmt.Errorf("unknown label %q", s)
}

// IsUnknown reports whether l carries no instrument opinion.
func (l Label) IsUnknown() bool {
	return l == LabelUnknown || l == LabelUnknownDisconnected
}

// IsStylus reports whether l attributes the contact to the stylus.
func (l Label) IsStylus() bool {
	return l == LabelPen || l == LabelEraser
}

// Point is a position in screen pixels.
type Point struct {
	X float64
	Y float64
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale returns p*k.
func (p Point) Scale(k float64) Point { return Point{p.X * k, p.Y * k} }

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 { return p.X*q.X + p.Y*q.Y }

// Norm returns the Euclidean length of p.
func (p Point) Norm() float64 { return math.Hypot(p.X, p.Y) }

// Dist2 returns the squared distance between p and q.
func (p Point) Dist2(q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

// Dist returns the distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Sqrt(p.Dist2(q)) }

// Unit returns p scaled to unit length, or the zero point.
func (p Point) Unit() Point {
	n := p.Norm()
	if n == 0 {
		return Point{}
	}
	return p.Scale(1 / n)
}

// Lerp returns the exponential-smoothing update lambda*q + (1-lambda)*p.
func (p Point) Lerp(q Point, lambda float64) Point {
	return Point{
		X: lambda*q.X + (1-lambda)*p.X,
		Y: lambda*q.Y + (1-lambda)*p.Y,
	}
}

// Sample is one observation of a contact.
type Sample struct {
	Pos       Point
	Timestamp float64 // seconds, monotonic
	Radius    float64 // major radius in pixels; valid only when HasRadius
	HasRadius bool
}

// ContactSnapshot is what the platform delivers for a contact each frame.
type ContactSnapshot struct {
	ID        ContactID
	Phase     Phase
	Pos       Point
	Timestamp float64
	Radius    float64
	HasRadius bool
}

// Sample converts the snapshot into a ledger sample.
func (s ContactSnapshot) Sample() Sample {
	return Sample{Pos: s.Pos, Timestamp: s.Timestamp, Radius: s.Radius, HasRadius: s.HasRadius}
}

// SwitchType identifies which hardware switch changed state.
type SwitchType int

const (
	SwitchTipDown SwitchType = iota
	SwitchTipUp
	SwitchEraserDown
	SwitchEraserUp
)

func (t SwitchType) String() string {
	switch t {
	case SwitchTipDown:
		return "tip_down"
	case SwitchTipUp:
		return "tip_up"
	case SwitchEraserDown:
		return "eraser_down"
	case SwitchEraserUp:
		return "eraser_up"
	}
	return fmt.Sprintf("switch(%d)", int(t))
}

// ParseSwitchType is the inverse of SwitchType.String.
func ParseSwitchType(s string) (SwitchType, error) {
	for t := SwitchTipDown; t <= SwitchEraserUp; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return SwitchTipDown, fmt.Errorf("unknown switch type %q", s)
}

// IsDown reports whether the switch was pressed.
func (t SwitchType) IsDown() bool { return t == SwitchTipDown || t == SwitchEraserDown }

// IsEraser reports whether the event came from the eraser switch.
func (t SwitchType) IsEraser() bool { return t == SwitchEraserDown || t == SwitchEraserUp }

// Pair returns the opposite transition of the same switch.
func (t SwitchType) Pair() SwitchType {
	switch t {
	case SwitchTipDown:
		return SwitchTipUp
	case SwitchTipUp:
		return SwitchTipDown
	case SwitchEraserDown:
		return SwitchEraserUp
	default:
		return SwitchEraserDown
	}
}

// SwitchEvent is a decoded hardware switch transition. ID is assigned by the
// ledger when the event is recorded.
type SwitchEvent struct {
	ID        uint64
	Type      SwitchType
	Timestamp float64
}
