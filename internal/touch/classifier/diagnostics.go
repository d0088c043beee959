package classifier

import "github.com/banshee-data/palmreject/internal/touch"

// Diagnostic records why a contact has its label. It is rebuilt on every
// pass and is not authoritative state.
type Diagnostic struct {
	ID      touch.ContactID
	Cluster uint64 // cluster sequence number
	Label   touch.Label
	Rule    string
	Locked  bool
	Forced  bool // label set by a per-contact rule

	Prior             float64
	GapSincePrevBegin float64
	GapSincePrevEnd   float64
	GapToNextBegin    float64

	DownProbability    float64
	UpProbability      float64
	PenProbability     float64
	EraserProbability  float64
	ClusterProbability float64
	Dominated          bool

	Geometry   float64
	GeometryOK bool
}

// Diagnostics returns a copy of the diagnostic record for id.
func (c *Classifier) Diagnostics(id touch.ContactID) (Diagnostic, bool) {
	d, ok := c.diag[id]
	if !ok {
		return Diagnostic{}, false
	}
	return *d, true
}
