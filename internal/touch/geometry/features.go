package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Feature indexes the statistics extracted from a stroke.
type Feature int

// Time parameterization. Derivative norms are divided by L/T^k.
const (
	FeatSpeedMean Feature = iota
	FeatSpeedCV
	FeatSpeedMaxRatio
	FeatAccelRMS
	FeatAccelMax
	FeatAccelTangentialRMS
	FeatAccelOrthogonalRMS
	FeatJerkRMS
	FeatJerkMax
	FeatJerkTangentialRMS
	FeatJerkOrthogonalRMS
	FeatIntegratedSpeedRatio

	// Arc-length parameterization over the stroke resampled to unit length.
	FeatArcSecondRMS
	FeatArcSecondMax
	FeatArcSecondOrthogonalRMS
	FeatArcThirdRMS
	FeatArcThirdMax
	FeatArcThirdOrthogonalRMS
	FeatTurningTotal
	FeatTurningNet
	FeatTurningMax

	// Interpolation residuals, divided by L.
	FeatLinearResidualRMS
	FeatLinearResidualMax
	FeatQuadraticResidualRMS
	FeatQuadraticResidualMax
	FeatMidpointDeviationRMS
	FeatMidpointDeviationMax
	FeatArcChordRatio

	// Extent and sampling.
	FeatLength
	FeatDuration
	FeatChord
	FeatPoints
	FeatIntervalCV
	FeatSegmentCV
	FeatSegmentMaxRatio
	FeatDurationPerLength
	FeatAspect
	FeatExtentFill
	FeatStartEndSpeedRatio
	FeatPauseFraction

	NumFeatures
)

var featureNames = [NumFeatures]string{
	"speed_mean", "speed_cv", "speed_max_ratio",
	"accel_rms", "accel_max", "accel_tangential_rms", "accel_orthogonal_rms",
	"jerk_rms", "jerk_max", "jerk_tangential_rms", "jerk_orthogonal_rms",
	"integrated_speed_ratio",
	"arc_second_rms", "arc_second_max", "arc_second_orthogonal_rms",
	"arc_third_rms", "arc_third_max", "arc_third_orthogonal_rms",
	"turning_total", "turning_net", "turning_max",
	"linear_residual_rms", "linear_residual_max",
	"quadratic_residual_rms", "quadratic_residual_max",
	"midpoint_deviation_rms", "midpoint_deviation_max",
	"arc_chord_ratio",
	"length", "duration", "chord", "points",
	"interval_cv", "segment_cv", "segment_max_ratio", "duration_per_length",
	"aspect", "extent_fill", "start_end_speed_ratio", "pause_fraction",
}

func (f Feature) String() string {
	if f >= 0 && f < NumFeatures {
		return featureNames[f]
	}
	return "unknown"
}

// Features holds one value per Feature.
type Features [NumFeatures]float64

// resamplePoints is the arc-length grid size.
const resamplePoints = 32

// MinPoints is the fewest distinct samples a stroke needs for third
// differences.
const MinPoints = 5

// Stroke is a point/time series. Samples with repeated timestamps are
// collapsed by NewStroke.
type Stroke struct {
	X, Y, T []float64
}

// NewStroke copies xs, ys, ts dropping samples that do not advance time.
func NewStroke(xs, ys, ts []float64) Stroke {
	var s Stroke
	for i := range ts {
		if n := len(s.T); n > 0 && ts[i] <= s.T[n-1] {
			continue
		}
		s.X = append(s.X, xs[i])
		s.Y = append(s.Y, ys[i])
		s.T = append(s.T, ts[i])
	}
	return s
}

// Len returns the number of samples.
func (s Stroke) Len() int { return len(s.T) }

// Duration returns the time spanned by the stroke.
func (s Stroke) Duration() float64 {
	if len(s.T) < 2 {
		return 0
	}
	return s.T[len(s.T)-1] - s.T[0]
}

// segments returns the polyline segment lengths.
func (s Stroke) segments() []float64 {
	if len(s.T) < 2 {
		return nil
	}
	out := make([]float64, len(s.T)-1)
	for i := range out {
		out[i] = math.Hypot(s.X[i+1]-s.X[i], s.Y[i+1]-s.Y[i])
	}
	return out
}

// Extract computes the feature vector. ok is false when the stroke is too
// short in points, time or length to say anything about its shape.
func Extract(s Stroke) (f Features, ok bool) {
	n := s.Len()
	if n < MinPoints {
		return f, false
	}
	seg := s.segments()
	length := floats.Sum(seg)
	dur := s.Duration()
	if length < 1e-6 || dur <= 0 {
		return f, false
	}
	chord := math.Hypot(s.X[n-1]-s.X[0], s.Y[n-1]-s.Y[0])

	f[FeatLength] = length
	f[FeatDuration] = dur
	f[FeatChord] = chord
	f[FeatPoints] = float64(n)
	f[FeatArcChordRatio] = length / math.Max(chord, 1e-6)
	f[FeatDurationPerLength] = dur / length

	timeFeatures(&f, s, length, dur)
	arcFeatures(&f, s, seg, length)
	residualFeatures(&f, s, seg, length)
	samplingFeatures(&f, s, seg, length)
	return f, true
}

type vec struct{ x, y float64 }

func (v vec) norm() float64 { return math.Hypot(v.x, v.y) }

// diff returns finite differences of (xs, ys) against ts, evaluated at the
// interval midpoints.
func diff(xs, ys, ts []float64) (dx, dy, mid []float64) {
	n := len(ts) - 1
	if n < 1 {
		return nil, nil, nil
	}
	dx = make([]float64, n)
	dy = make([]float64, n)
	mid = make([]float64, n)
	for i := 0; i < n; i++ {
		dt := ts[i+1] - ts[i]
		dx[i] = (xs[i+1] - xs[i]) / dt
		dy[i] = (ys[i+1] - ys[i]) / dt
		mid[i] = 0.5 * (ts[i] + ts[i+1])
	}
	return dx, dy, mid
}

// splitAgainst decomposes (ax, ay) into components along and orthogonal to
// the reference directions (rx, ry), which are averaged pairwise when they
// have one more entry than a.
func splitAgainst(ax, ay, rx, ry []float64) (tan, orth []float64) {
	tan = make([]float64, len(ax))
	orth = make([]float64, len(ax))
	for i := range ax {
		d := vec{rx[i], ry[i]}
		if len(rx) == len(ax)+1 {
			d = vec{rx[i] + rx[i+1], ry[i] + ry[i+1]}
		}
		nd := d.norm()
		if nd == 0 {
			tan[i] = 0
			orth[i] = vec{ax[i], ay[i]}.norm()
			continue
		}
		ux, uy := d.x/nd, d.y/nd
		tan[i] = ax[i]*ux + ay[i]*uy
		orth[i] = ax[i]*-uy + ay[i]*ux
	}
	return tan, orth
}

func norms(xs, ys []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		out[i] = math.Hypot(xs[i], ys[i])
	}
	return out
}

func rms(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(v, v) / float64(len(v)))
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

func cv(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(v, nil)
	if mean == 0 {
		return 0
	}
	return std / math.Abs(mean)
}

func timeFeatures(f *Features, s Stroke, length, dur float64) {
	vx, vy, tv := diff(s.X, s.Y, s.T)
	speed := norms(vx, vy)
	meanSpeed := stat.Mean(speed, nil)

	f[FeatSpeedMean] = meanSpeed / (length / dur)
	f[FeatSpeedCV] = cv(speed)
	if meanSpeed > 0 {
		f[FeatSpeedMaxRatio] = floats.Max(speed) / meanSpeed
		f[FeatStartEndSpeedRatio] = (speed[0] + 1e-6) / (speed[len(speed)-1] + 1e-6)
	}
	f[FeatIntegratedSpeedRatio] = integrate.Trapezoidal(tv, speed) / length

	pauses := 0
	for _, v := range speed {
		if v < 0.1*meanSpeed {
			pauses++
		}
	}
	f[FeatPauseFraction] = float64(pauses) / float64(len(speed))

	ax, ay, ta := diff(vx, vy, tv)
	accel := norms(ax, ay)
	aTan, aOrth := splitAgainst(ax, ay, vx, vy)
	accelScale := length / (dur * dur)
	f[FeatAccelRMS] = rms(accel) / accelScale
	f[FeatAccelMax] = maxAbs(accel) / accelScale
	f[FeatAccelTangentialRMS] = rms(aTan) / accelScale
	f[FeatAccelOrthogonalRMS] = rms(aOrth) / accelScale

	jx, jy, _ := diff(ax, ay, ta)
	jerk := norms(jx, jy)
	jTan, jOrth := splitAgainst(jx, jy, ax, ay)
	jerkScale := accelScale / dur
	f[FeatJerkRMS] = rms(jerk) / jerkScale
	f[FeatJerkMax] = maxAbs(jerk) / jerkScale
	f[FeatJerkTangentialRMS] = rms(jTan) / jerkScale
	f[FeatJerkOrthogonalRMS] = rms(jOrth) / jerkScale
}

// resample returns the stroke at k points evenly spaced in arc length,
// scaled to unit total length.
func resample(s Stroke, seg []float64, length float64, k int) (xs, ys []float64) {
	cum := make([]float64, len(seg)+1)
	floats.CumSum(cum[1:], seg)
	targets := floats.Span(make([]float64, k), 0, length)
	xs = make([]float64, k)
	ys = make([]float64, k)
	j := 0
	for i, target := range targets {
		for j < len(seg)-1 && cum[j+1] < target {
			j++
		}
		frac := 0.0
		if seg[j] > 0 {
			frac = math.Min(1, math.Max(0, (target-cum[j])/seg[j]))
		}
		xs[i] = (s.X[j] + frac*(s.X[j+1]-s.X[j])) / length
		ys[i] = (s.Y[j] + frac*(s.Y[j+1]-s.Y[j])) / length
	}
	return xs, ys
}

func arcFeatures(f *Features, s Stroke, seg []float64, length float64) {
	k := resamplePoints
	xs, ys := resample(s, seg, length, k)
	grid := floats.Span(make([]float64, k), 0, 1)

	tx, ty, gs := diff(xs, ys, grid)
	sx, sy, gs2 := diff(tx, ty, gs)
	second := norms(sx, sy)
	_, secondOrth := splitAgainst(sx, sy, tx, ty)
	f[FeatArcSecondRMS] = rms(second)
	f[FeatArcSecondMax] = maxAbs(second)
	f[FeatArcSecondOrthogonalRMS] = rms(secondOrth)

	rx, ry, _ := diff(sx, sy, gs2)
	third := norms(rx, ry)
	_, thirdOrth := splitAgainst(rx, ry, sx, sy)
	f[FeatArcThirdRMS] = rms(third)
	f[FeatArcThirdMax] = maxAbs(third)
	f[FeatArcThirdOrthogonalRMS] = rms(thirdOrth)

	total, net, peak := 0.0, 0.0, 0.0
	for i := 1; i < len(tx); i++ {
		a := math.Atan2(ty[i], tx[i]) - math.Atan2(ty[i-1], tx[i-1])
		a = math.Remainder(a, 2*math.Pi)
		total += math.Abs(a)
		net += a
		peak = math.Max(peak, math.Abs(a))
	}
	f[FeatTurningTotal] = total
	f[FeatTurningNet] = math.Abs(net)
	f[FeatTurningMax] = peak
}

// residualFeatures fits x(s) and y(s) against normalized arc length with a
// line and a quadratic and records the residual norms.
func residualFeatures(f *Features, s Stroke, seg []float64, length float64) {
	n := s.Len()
	u := make([]float64, n)
	floats.CumSum(u[1:], seg)
	floats.Scale(1/length, u)

	lin := make([]float64, n)
	ax, bx := stat.LinearRegression(u, s.X, nil, false)
	ay, by := stat.LinearRegression(u, s.Y, nil, false)
	for i := range u {
		lin[i] = math.Hypot(s.X[i]-(ax+bx*u[i]), s.Y[i]-(ay+by*u[i]))
	}
	f[FeatLinearResidualRMS] = rms(lin) / length
	f[FeatLinearResidualMax] = maxAbs(lin) / length

	quad := quadraticResiduals(u, s.X, s.Y)
	f[FeatQuadraticResidualRMS] = rms(quad) / length
	f[FeatQuadraticResidualMax] = maxAbs(quad) / length

	mid := make([]float64, 0, n-2)
	for i := 1; i < n-1; i++ {
		mid = append(mid, pointToSegment(s.X[i], s.Y[i], s.X[i-1], s.Y[i-1], s.X[i+1], s.Y[i+1]))
	}
	f[FeatMidpointDeviationRMS] = rms(mid) / length
	f[FeatMidpointDeviationMax] = maxAbs(mid) / length
}

// quadraticResiduals returns the point distances to the least-squares
// quadratic fit of (xs, ys) against u.
func quadraticResiduals(u, xs, ys []float64) []float64 {
	n := len(u)
	a := mat.NewDense(n, 3, nil)
	for i, v := range u {
		a.Set(i, 0, 1)
		a.Set(i, 1, v)
		a.Set(i, 2, v*v)
	}
	fit := func(b []float64) []float64 {
		var coef mat.VecDense
		if err := coef.SolveVec(a, mat.NewVecDense(n, b)); err != nil {
			return nil
		}
		var pred mat.VecDense
		pred.MulVec(a, &coef)
		return pred.RawVector().Data
	}
	px, py := fit(xs), fit(ys)
	out := make([]float64, n)
	if px == nil || py == nil {
		return out
	}
	for i := range out {
		out[i] = math.Hypot(xs[i]-px[i], ys[i]-py[i])
	}
	return out
}

func pointToSegment(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := math.Min(1, math.Max(0, ((px-ax)*dx+(py-ay)*dy)/l2))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

func samplingFeatures(f *Features, s Stroke, seg []float64, length float64) {
	dts := make([]float64, len(s.T)-1)
	floats.SubTo(dts, s.T[1:], s.T[:len(s.T)-1])
	f[FeatIntervalCV] = cv(dts)
	f[FeatSegmentCV] = cv(seg)
	if mean := stat.Mean(seg, nil); mean > 0 {
		f[FeatSegmentMaxRatio] = floats.Max(seg) / mean
	}

	// Principal extents from the covariance eigenvalues.
	data := mat.NewDense(s.Len(), 2, nil)
	for i := range s.T {
		data.Set(i, 0, s.X[i])
		data.Set(i, 1, s.Y[i])
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)
	var eig mat.EigenSym
	if eig.Factorize(&cov, false) {
		vals := eig.Values(nil) // ascending
		major := math.Sqrt(math.Max(vals[1], 0))
		minor := math.Sqrt(math.Max(vals[0], 0))
		if major > 0 {
			f[FeatAspect] = minor / major
			f[FeatExtentFill] = length / (4 * major)
		}
	}
}
