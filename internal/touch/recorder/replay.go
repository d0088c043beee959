package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/banshee-data/palmreject/internal/monitoring"
	"github.com/banshee-data/palmreject/internal/timeutil"
	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/classifier"
)

// Options controls Replay.
type Options struct {
	// Clock paces records in real time when non-nil.
	Clock timeutil.Clock
	// Speed scales pacing; values <= 0 mean 1.
	Speed float64
	// Settle advances the classifier this many seconds past the last
	// record so pending deadlines and locks resolve.
	Settle float64
	// OnStep is called after every record.
	OnStep func(Step)
}

// Step is the classifier's response to one record.
type Step struct {
	Index        int
	Record       Record
	Changes      classifier.Changes
	Reclassified []touch.ContactID
}

// ClusterSample is one cluster's pen probability after a step.
type ClusterSample struct {
	T              float64
	Seq            uint64
	PenProbability float64
	Label          touch.Label
}

// Stroke is one contact lifetime with the last label it was given.
type Stroke struct {
	ID     touch.ContactID
	Points []touch.Point
	Radius float64 // mean reported radius, 0 when none was reported
	Begin  float64
	End    float64
	Label  touch.Label
}

// Result summarises a replay.
type Result struct {
	Steps         int
	Passes        int // steps that changed at least one label
	LabelChanges  int
	Glitches      int
	OffscreenHits int
	Strokes       []Stroke
	Samples       []ClusterSample
}

// FinalLabels maps each contact id to the label of its latest lifetime.
func (r *Result) FinalLabels() map[touch.ContactID]touch.Label {
	out := make(map[touch.ContactID]touch.Label, len(r.Strokes))
	for _, s := range r.Strokes {
		out[s.ID] = s.Label
	}
	return out
}

// LabelCounts counts strokes per final label.
func (r *Result) LabelCounts() map[touch.Label]int {
	out := make(map[touch.Label]int)
	for _, s := range r.Strokes {
		out[s.Label]++
	}
	return out
}

type strokeBuilder struct {
	result  *Result
	current map[touch.ContactID]int // index into result.Strokes
	radius  map[int][2]float64      // sum, count
}

func (b *strokeBuilder) observe(batch []touch.ContactSnapshot) {
	for _, s := range batch {
		idx, ok := b.current[s.ID]
		if s.Phase == touch.PhaseBegan || !ok {
			b.result.Strokes = append(b.result.Strokes, Stroke{ID: s.ID, Begin: s.Timestamp, End: s.Timestamp})
			idx = len(b.result.Strokes) - 1
			b.current[s.ID] = idx
		}
		st := &b.result.Strokes[idx]
		st.Points = append(st.Points, s.Pos)
		st.End = s.Timestamp
		if s.HasRadius {
			acc := b.radius[idx]
			acc[0] += s.Radius
			acc[1]++
			b.radius[idx] = acc
			st.Radius = acc[0] / acc[1]
		}
	}
}

func (b *strokeBuilder) label(ch classifier.Changes) {
	for id, l := range ch {
		if idx, ok := b.current[id]; ok {
			b.result.Strokes[idx].Label = l
		}
	}
}

// Replay feeds every record from src into c and collects the outcome.
func Replay(ctx context.Context, src Source, c *classifier.Classifier, opts Options) (*Result, error) {
	speed := opts.Speed
	if speed <= 0 {
		speed = 1
	}
	res := &Result{}
	sb := &strokeBuilder{result: res, current: make(map[touch.ContactID]int), radius: make(map[int][2]float64)}

	var (
		first, last float64
		started     bool
		wallStart   time.Time
	)
	if opts.Clock != nil {
		wallStart = opts.Clock.Now()
	}

	apply := func(idx int, rec Record) error {
		var ch classifier.Changes
		switch rec.Kind {
		case KindContacts:
			batch, err := rec.Batch()
			if err != nil {
				return err
			}
			sb.observe(batch)
			ch = c.OnTouchesChanged(batch)
		case KindSwitch:
			ev, err := rec.SwitchEvent()
			if err != nil {
				return err
			}
			ch = c.OnSwitchEvent(ev)
		case KindConnect:
			ch = merge(c.Advance(rec.T), c.StylusConnected())
		case KindDisconnect:
			ch = merge(c.Advance(rec.T), c.StylusDisconnected())
		case KindRemove:
			ch = merge(c.Advance(rec.T), c.RemoveContactFromClassification(touch.ContactID(rec.ContactID)))
		case KindAdvance:
			ch = c.Advance(rec.T)
		default:
			return fmt.Errorf("unexpected %q record", rec.Kind)
		}
		sb.label(ch)
		if len(ch) > 0 {
			res.Passes++
			res.LabelChanges += len(ch)
		}
		for {
			if _, ok := c.OffscreenPress(); !ok {
				break
			}
			res.OffscreenHits++
		}
		for _, info := range c.Clusters() {
			res.Samples = append(res.Samples, ClusterSample{T: c.Now(), Seq: info.Seq, PenProbability: info.PenProbability, Label: info.Label})
		}
		res.Steps++
		if opts.OnStep != nil {
			opts.OnStep(Step{Index: idx, Record: rec, Changes: copyChanges(ch), Reclassified: c.TouchesReclassified()})
		}
		return nil
	}

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("record %d: %w", idx, err)
		}
		if !started {
			first, started = rec.T, true
		}
		if opts.Clock != nil {
			due := time.Duration((rec.T - first) / speed * float64(time.Second))
			if wait := due - opts.Clock.Since(wallStart); wait > 0 {
				opts.Clock.Sleep(wait)
			}
		}
		if rec.T > last {
			last = rec.T
		}
		if err := apply(idx, rec); err != nil {
			return res, fmt.Errorf("record %d: %w", idx, err)
		}
	}

	if opts.Settle > 0 && started {
		if err := apply(res.Steps, Record{Kind: KindAdvance, T: last + opts.Settle}); err != nil {
			return res, err
		}
	}
	res.Glitches = c.SwitchGlitches()
	monitoring.Logf("[replay] %d records, %d label changes, %d strokes, %d glitches",
		res.Steps, res.LabelChanges, len(res.Strokes), res.Glitches)
	return res, nil
}

func copyChanges(ch classifier.Changes) classifier.Changes {
	out := make(classifier.Changes, len(ch))
	for k, v := range ch {
		out[k] = v
	}
	return out
}

// merge folds later changes over earlier ones.
func merge(earlier, later classifier.Changes) classifier.Changes {
	out := copyChanges(earlier)
	for k, v := range later {
		out[k] = v
	}
	return out
}

// SortedIDs returns the keys of ch in ascending order.
func SortedIDs(ch classifier.Changes) []touch.ContactID {
	ids := make([]touch.ContactID, 0, len(ch))
	for id := range ch {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
