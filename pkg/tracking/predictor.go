package tracking

import (
	"math"
	"time"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/coordinates"
)

// Predictor turns the history of one aircraft into a fused estimate for a
// requested time. It holds no state besides its configuration and may be
// shared.
type Predictor struct {
	cfg Config
}

// NewPredictor creates a predictor.
func NewPredictor(cfg Config) *Predictor {
	return &Predictor{cfg: cfg}
}

// Predict produces the fused view of raw at now.
//
// The steps, in order:
//   - Remove when the newest fix is older than RealFixTimeout.
//   - Hide when no vector exists at or before now.
//   - Select one vector per RedundantFixWindow by source priority.
//   - Resolve the position at now by interpolation, or by extrapolation
//     when now is past the newest fix.
//   - Remove when the position lies outside the monitored area.
//   - Derive vertical speed, maneuver and on-ground status.
//   - Resolve every trail timestamp earlier than the current fix.
//
// airport may be nil. Predict panics when raw holds no vectors.
func (p *Predictor) Predict(now time.Time, trail []time.Time, raw *AircraftRawData, airport *Airport) (Result, *Aircraft) {
	youngest, ok := raw.YoungestTime()
	if !ok {
		panic("tracking: predict called with empty raw data")
	}
	if now.Sub(youngest) > p.cfg.RealFixTimeout {
		return ResultRemove, nil
	}

	current, ok := raw.StateVectorOrPrevious(now)
	if !ok {
		return ResultHide, nil
	}

	all := raw.ListAllStateVectors()
	filtered := p.filterRedundant(all)

	fix, ok := p.resolve(now, all, filtered)
	if !ok {
		return ResultHide, nil
	}

	if !p.cfg.MonitoredArea.IsZero() && !p.cfg.MonitoredArea.Contains(fix.Position) {
		return ResultRemove, nil
	}

	speed := 0.0
	if current.GroundSpeed != nil {
		speed = *current.GroundSpeed
	}
	track := 0
	if current.Track != nil {
		track = *current.Track
	}

	vs := p.verticalSpeed(fix, current, all, filtered)

	state := PredictedStateVector{
		Fix:           fix,
		RealFix:       current.Fix,
		GroundSpeed:   speed,
		VerticalSpeed: vs,
		Track:         track,
		OnGround:      p.onGround(current, fix.Position, speed, airport),
		Maneuver:      maneuverFor(current.Maneuver, vs),
		Source:        current.Source,
	}

	var trailFixes []Fix
	for _, ts := range trail {
		if !ts.Before(fix.Time) {
			continue
		}
		if tf, ok := p.resolve(ts, all, filtered); ok {
			trailFixes = append(trailFixes, tf)
		}
	}

	rawFixes := make([]Fix, len(filtered))
	for i, v := range filtered {
		rawFixes[i] = v.Fix
	}

	return ResultShow, &Aircraft{
		Identifier: raw.Identifier,
		Info:       raw.Info,
		State:      state,
		Trail:      trailFixes,
		RawFixes:   rawFixes,
		Sources:    raw.ListParticipatingDataSources(),
	}
}

// Resolve returns the position of raw at t, interpolated between real fixes
// or extrapolated past the newest one.
func (p *Predictor) Resolve(t time.Time, raw *AircraftRawData) (Fix, bool) {
	all := raw.ListAllStateVectors()
	if len(all) == 0 {
		return Fix{}, false
	}
	return p.resolve(t, all, p.filterRedundant(all))
}

func (p *Predictor) resolve(t time.Time, all, filtered []StateVector) (Fix, bool) {
	if len(all) == 0 {
		return Fix{}, false
	}
	if t.After(all[len(all)-1].Fix.Time) {
		return p.extrapolate(t, all, filtered), true
	}
	return p.interpolate(t, all)
}

// filterRedundant walks back from the newest vector. Every vector within
// RedundantFixWindow of the group's newest forms one group, of which only
// the highest-priority vector is kept (the newest one on ties). The result
// is chronological.
func (p *Predictor) filterRedundant(all []StateVector) []StateVector {
	var out []StateVector
	i := len(all) - 1
	for i >= 0 {
		anchor := all[i].Fix.Time
		best := i
		j := i - 1
		for j >= 0 && anchor.Sub(all[j].Fix.Time) < p.cfg.RedundantFixWindow {
			if p.cfg.Priority(all[j].Source) < p.cfg.Priority(all[best].Source) {
				best = j
			}
			j--
		}
		out = append(out, all[best])
		i = j
	}

	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// best returns the highest-priority vector of vs, the last one on ties.
func (p *Predictor) best(vs []StateVector) StateVector {
	b := vs[len(vs)-1]
	for i := len(vs) - 2; i >= 0; i-- {
		if p.cfg.Priority(vs[i].Source) < p.cfg.Priority(b.Source) {
			b = vs[i]
		}
	}
	return b
}

// newestFix returns the fix of the newest second in all, taken from the
// highest-priority source that reported it.
func (p *Predictor) newestFix(all []StateVector) Fix {
	start := len(all) - 1
	for start > 0 && all[start-1].Fix.Time.Equal(all[len(all)-1].Fix.Time) {
		start--
	}
	return p.best(all[start:]).Fix
}

// interpolate blends the real fixes just before and just after t. When
// several sources reported for the same second the highest-priority one
// represents it. Fails when either neighbor is missing.
func (p *Predictor) interpolate(t time.Time, all []StateVector) (Fix, bool) {
	prevEnd := -1
	for i := len(all) - 1; i >= 0; i-- {
		if !all[i].Fix.Time.After(t) {
			prevEnd = i
			break
		}
	}
	if prevEnd < 0 {
		return Fix{}, false
	}
	prevStart := prevEnd
	for prevStart > 0 && all[prevStart-1].Fix.Time.Equal(all[prevEnd].Fix.Time) {
		prevStart--
	}
	prev := p.best(all[prevStart : prevEnd+1]).Fix
	if prev.Time.Equal(t) {
		return prev, true
	}

	nextStart := prevEnd + 1
	if nextStart >= len(all) {
		return Fix{}, false
	}
	nextEnd := nextStart
	for nextEnd+1 < len(all) && all[nextEnd+1].Fix.Time.Equal(all[nextStart].Fix.Time) {
		nextEnd++
	}
	next := p.best(all[nextStart : nextEnd+1]).Fix

	f := coordinates.TimeFraction(prev.Time, next.Time, t)
	return Fix{Position: coordinates.Interpolate(prev.Position, next.Position, f), Time: t}, true
}

// extrapolate predicts the position at t past the newest real fix.
//
// t is clamped to MaxPredicted past the newest filtered fix. With fewer than
// MinFixCountForLinearRegression filtered fixes inside the look-back window
// the newest real fix of all (the highest-priority one within its second)
// is returned unchanged. Otherwise x, y and altitude are each
// fitted against time in a plane tangent at the newest fix; if a circle
// also fits with a radius below MaxCircleRadiusForFitting the horizontal
// position advances along that circle instead.
func (p *Predictor) extrapolate(t time.Time, all, filtered []StateVector) Fix {
	last := p.newestFix(all)
	newest := filtered[len(filtered)-1].Fix
	if limit := newest.Time.Add(p.cfg.MaxPredicted); t.After(limit) {
		t = limit
	}

	var window []StateVector
	for _, v := range filtered {
		if newest.Time.Sub(v.Fix.Time) <= p.cfg.MinTimeIntervalForPrediction {
			window = append(window, v)
		}
	}
	if len(window) < p.cfg.MinFixCountForLinearRegression || len(window) < 2 {
		return last
	}

	ts := make([]float64, len(window))
	xs := make([]float64, len(window))
	ys := make([]float64, len(window))
	alts := make([]float64, len(window))
	for i, v := range window {
		ts[i] = v.Fix.Time.Sub(newest.Time).Seconds()
		xs[i], ys[i] = coordinates.ToLocal(newest.Position, v.Fix.Position)
		alts[i] = v.Fix.Position.Altitude
	}

	lineX, okX := coordinates.FitLine(ts, xs)
	lineY, okY := coordinates.FitLine(ts, ys)
	lineAlt, okAlt := coordinates.FitLine(ts, alts)
	if !okX || !okY || !okAlt {
		return last
	}

	tau := t.Sub(newest.Time).Seconds()
	x, y := lineX.At(tau), lineY.At(tau)

	if cx, cy, ok := p.alongCircle(ts, xs, ys, tau); ok {
		x, y = cx, cy
	}

	pos := coordinates.FromLocal(newest.Position, x, y)
	pos.Altitude = lineAlt.At(tau)
	return Fix{Position: pos, Time: t}
}

// alongCircle advances the newest point (the last one, at the origin) by
// tau seconds along the fitted circle, at the angular velocity of the two
// newest points and at the newest point's own distance from the center.
func (p *Predictor) alongCircle(ts, xs, ys []float64, tau float64) (float64, float64, bool) {
	circle, ok := coordinates.FitCircle(xs, ys)
	if !ok || circle.Radius >= p.cfg.MaxCircleRadiusForFitting {
		return 0, 0, false
	}

	n := len(xs)
	dt := ts[n-1] - ts[n-2]
	if dt <= 0 {
		return 0, 0, false
	}
	theta0 := circle.Angle(xs[n-1], ys[n-1])
	theta1 := circle.Angle(xs[n-2], ys[n-2])
	omega := normalizeAngle(theta0-theta1) / dt

	r := circle.DistanceFromCenter(xs[n-1], ys[n-1])
	x, y := circle.PointAt(theta0+omega*tau, r)
	return x, y, true
}

// normalizeAngle maps a to (-pi, pi].
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// verticalSpeed compares the altitude at fix with the one resolved
// VerticalSpeedTimeDiff earlier. When that earlier position cannot be
// resolved the reported vertical speed is used. Rates below the noise
// threshold are zero.
func (p *Predictor) verticalSpeed(fix Fix, current StateVector, all, filtered []StateVector) float64 {
	rate := 0.0
	if earlier, ok := p.resolve(fix.Time.Add(-p.cfg.VerticalSpeedTimeDiff), all, filtered); ok {
		if elapsed := fix.Time.Sub(earlier.Time).Seconds(); elapsed > 0 {
			rate = (fix.Position.Altitude - earlier.Position.Altitude) / elapsed
		}
	} else if current.VerticalSpeed != nil {
		rate = *current.VerticalSpeed
	}

	if math.Abs(rate) < p.cfg.VerticalSpeedThreshold {
		return 0
	}
	return rate
}

// maneuverFor classifies the vertical rate. Circling comes from the feed
// and is kept as reported.
func maneuverFor(reported adsb.Maneuver, rate float64) adsb.Maneuver {
	if reported == adsb.ManeuverCircling {
		return reported
	}
	switch {
	case rate > 0:
		return adsb.ManeuverClimb
	case rate < 0:
		return adsb.ManeuverDescent
	default:
		return adsb.ManeuverHorizon
	}
}

// onGround uses the reported flag when present. Otherwise the aircraft is on
// the ground only if it is inside the airport area, near field elevation
// and slow.
func (p *Predictor) onGround(v StateVector, pos coordinates.Geographic, speed float64, airport *Airport) bool {
	if v.OnGround != nil {
		return *v.OnGround
	}
	if airport == nil || airport.Area.IsZero() {
		return false
	}
	return airport.Area.Contains(pos) &&
		math.Abs(pos.Altitude-airport.Elevation) <= p.cfg.AltitudeThresholdForOnGroundDetection &&
		speed < p.cfg.MaxGroundSpeedForOnGroundDetection
}
