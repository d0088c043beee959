// Package synth generates deterministic synthetic touch sessions for
// replay, demos and tests.
package synth

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/recorder"
)

// Scenario names a canned session.
type Scenario string

const (
	// PenAndPalm is a pen stroke with switch events while a palm rests
	// below and to the right.
	PenAndPalm Scenario = "pen-and-palm"
	// FingerDrag is a finger drag with no switch events.
	FingerDrag Scenario = "finger-drag"
	// Taps is a burst of short taps close together.
	Taps Scenario = "taps"
	// Cancel is two resting contacts cancelled together.
	Cancel Scenario = "cancel"
	// Writing is several pen strokes with a resting palm, one switch
	// glitch and a finger tap.
	Writing Scenario = "writing"
)

// Scenarios lists every scenario in a stable order.
func Scenarios() []Scenario {
	return []Scenario{PenAndPalm, FingerDrag, Taps, Cancel, Writing}
}

// ParseScenario validates a scenario name.
func ParseScenario(s string) (Scenario, error) {
	for _, sc := range Scenarios() {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", fmt.Errorf("unknown scenario %q", s)
}

// Options controls generation.
type Options struct {
	Seed      int64
	FrameRate float64 // contact frames per second; 0 means 60
	Jitter    float64 // positional noise amplitude in pixels
	EventLag  float64 // tip-down lag after the first frame, seconds; 0 means 0.025
}

// Session is a generated session.
type Session struct {
	Header  recorder.Header
	Records []recorder.Record
	// Truth is the intended label of every contact lifetime, keyed by id.
	Truth map[touch.ContactID]touch.Label
}

// stroke is one scripted contact.
type stroke struct {
	id     touch.ContactID
	start  float64
	pts    []touch.Point
	radius float64
	cancel bool
	label  touch.Label
}

type builder struct {
	opts    Options
	rng     *rand.Rand
	dt      float64
	strokes []stroke
	extra   []recorder.Record
	truth   map[touch.ContactID]touch.Label
}

// Generate builds the named scenario.
func Generate(sc Scenario, opts Options) (*Session, error) {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 60
	}
	if opts.EventLag <= 0 {
		opts.EventLag = 0.025
	}
	b := &builder{
		opts:  opts,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		dt:    1 / opts.FrameRate,
		truth: make(map[touch.ContactID]touch.Label),
	}
	connected := true
	switch sc {
	case PenAndPalm:
		b.palm(2, 0.0, touch.Point{X: 620, Y: 560}, 0.9)
		b.pen(1, 0.3, arc(touch.Point{X: 300, Y: 300}, 150, 0, math.Pi/2, 30))
	case FingerDrag:
		connected = false
		b.finger(1, 0, line(touch.Point{X: 200, Y: 400}, touch.Point{X: 600, Y: 420}, 40))
	case Taps:
		for i := 0; i < 4; i++ {
			b.tap(touch.ContactID(i+1), 0.25*float64(i), touch.Point{X: 500 + 15*float64(i), Y: 500})
		}
	case Cancel:
		b.rest(1, 0, touch.Point{X: 300, Y: 300}, 0.5, 18, true)
		b.rest(2, 0.05, touch.Point{X: 700, Y: 500}, 0.45, 22, true)
	case Writing:
		b.palm(10, 0.0, touch.Point{X: 640, Y: 620}, 3.2)
		for i := 0; i < 4; i++ {
			start := 0.2 + 0.7*float64(i)
			origin := touch.Point{X: 220 + 90*float64(i), Y: 320}
			b.pen(touch.ContactID(i+1), start, zigzag(origin, 70, 40, 24))
		}
		b.glitch(1.5)
		b.finger(20, 3.1, line(touch.Point{X: 150, Y: 150}, touch.Point{X: 150, Y: 300}, 20))
	default:
		return nil, fmt.Errorf("unknown scenario %q", sc)
	}
	return b.session(sc, connected), nil
}

func (b *builder) jitter(p touch.Point) touch.Point {
	if b.opts.Jitter <= 0 {
		return p
	}
	return touch.Point{
		X: p.X + (b.rng.Float64()*2-1)*b.opts.Jitter,
		Y: p.Y + (b.rng.Float64()*2-1)*b.opts.Jitter,
	}
}

func (b *builder) add(s stroke) {
	b.strokes = append(b.strokes, s)
	b.truth[s.id] = s.label
}

func (b *builder) pen(id touch.ContactID, start float64, pts []touch.Point) {
	b.add(stroke{id: id, start: start, pts: pts, label: touch.LabelPen})
	end := start + float64(len(pts)-1)*b.dt
	b.extra = append(b.extra,
		recorder.SwitchRecord(touch.SwitchEvent{Type: touch.SwitchTipDown, Timestamp: start + b.opts.EventLag}),
		recorder.SwitchRecord(touch.SwitchEvent{Type: touch.SwitchTipUp, Timestamp: end - b.dt/2}),
	)
}

func (b *builder) finger(id touch.ContactID, start float64, pts []touch.Point) {
	b.add(stroke{id: id, start: start, pts: pts, radius: 9, label: touch.LabelFinger})
}

func (b *builder) palm(id touch.ContactID, start float64, at touch.Point, duration float64) {
	b.rest(id, start, at, duration, 30, false)
}

func (b *builder) rest(id touch.ContactID, start float64, at touch.Point, duration, radius float64, cancel bool) {
	n := int(duration/b.dt) + 1
	pts := make([]touch.Point, n)
	for i := range pts {
		pts[i] = at
	}
	b.add(stroke{id: id, start: start, pts: pts, radius: radius, cancel: cancel, label: touch.LabelPalm})
}

func (b *builder) tap(id touch.ContactID, start float64, at touch.Point) {
	b.add(stroke{id: id, start: start, pts: []touch.Point{at, at, at, at}, radius: 8, label: touch.LabelPalm})
}

// glitch is a tip down/up pair inside the debounce window.
func (b *builder) glitch(t float64) {
	b.extra = append(b.extra,
		recorder.SwitchRecord(touch.SwitchEvent{Type: touch.SwitchTipDown, Timestamp: t}),
		recorder.SwitchRecord(touch.SwitchEvent{Type: touch.SwitchTipUp, Timestamp: t + 0.005}),
	)
}

// session merges the scripted strokes into per-frame batches and
// interleaves the extra records by time.
func (b *builder) session(sc Scenario, connected bool) *Session {
	type frame struct {
		t     float64
		snaps []touch.ContactSnapshot
	}
	frames := make(map[int64]*frame)
	key := func(t float64) int64 { return int64(math.Round(t * 1e6)) }
	var last float64
	for _, s := range b.strokes {
		for i, p := range s.pts {
			t := s.start + float64(i)*b.dt
			phase := touch.PhaseMoved
			switch {
			case i == 0:
				phase = touch.PhaseBegan
			case i == len(s.pts)-1 && s.cancel:
				phase = touch.PhaseCancelled
			case i == len(s.pts)-1:
				phase = touch.PhaseEnded
			case s.pts[i] == s.pts[i-1]:
				phase = touch.PhaseStationary
			}
			snap := touch.ContactSnapshot{ID: s.id, Phase: phase, Pos: b.jitter(p), Timestamp: t}
			if s.radius > 0 {
				snap.Radius, snap.HasRadius = s.radius, true
			}
			k := key(t)
			f, ok := frames[k]
			if !ok {
				f = &frame{t: t}
				frames[k] = f
			}
			f.snaps = append(f.snaps, snap)
			last = math.Max(last, t)
		}
	}

	recs := make([]recorder.Record, 0, len(frames)+len(b.extra)+2)
	if connected {
		recs = append(recs, recorder.Record{Kind: recorder.KindConnect, T: 0})
	}
	for _, f := range frames {
		sort.Slice(f.snaps, func(i, j int) bool { return f.snaps[i].ID < f.snaps[j].ID })
		recs = append(recs, recorder.ContactsRecord(f.snaps))
	}
	recs = append(recs, b.extra...)
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].T != recs[j].T {
			return recs[i].T < recs[j].T
		}
		return kindOrder(recs[i].Kind) < kindOrder(recs[j].Kind)
	})
	recs = append(recs, recorder.Record{Kind: recorder.KindAdvance, T: last + 1})

	return &Session{
		Header:  recorder.Header{Source: "synth:" + string(sc)},
		Records: recs,
		Truth:   b.truth,
	}
}

func kindOrder(k recorder.Kind) int {
	switch k {
	case recorder.KindConnect:
		return 0
	case recorder.KindContacts:
		return 1
	default:
		return 2
	}
}

func arc(center touch.Point, radius, from, to float64, n int) []touch.Point {
	pts := make([]touch.Point, n)
	for i := range pts {
		th := from + (to-from)*float64(i)/float64(n-1)
		pts[i] = touch.Point{X: center.X + radius*math.Cos(th), Y: center.Y + radius*math.Sin(th)}
	}
	return pts
}

func line(a, b touch.Point, n int) []touch.Point {
	pts := make([]touch.Point, n)
	for i := range pts {
		pts[i] = a.Lerp(b, float64(i)/float64(n-1))
	}
	return pts
}

func zigzag(origin touch.Point, width, height float64, n int) []touch.Point {
	pts := make([]touch.Point, n)
	for i := range pts {
		f := float64(i) / float64(n-1)
		pts[i] = touch.Point{
			X: origin.X + width*f,
			Y: origin.Y + height*math.Sin(f*3*math.Pi),
		}
	}
	return pts
}
