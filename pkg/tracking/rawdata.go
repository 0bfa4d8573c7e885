package tracking

import (
	"sort"
	"time"

	"github.com/unklstewy/radarfusion/pkg/adsb"
)

// bucket holds every vector reported for one second.
type bucket struct {
	ts      int64 // unix seconds
	vectors []StateVector
}

// AircraftRawData is the retained history of one tracked aircraft.
// It is not safe for concurrent use; Collection serializes access.
type AircraftRawData struct {
	Identifier Identifier
	Info       AircraftInfo

	// buckets is sorted by ts, oldest first. Within a bucket vectors keep
	// arrival order.
	buckets []bucket

	maxAge time.Duration
	clock  Clock
}

// NewAircraftRawData creates an empty history. maxAge bounds how long
// vectors are retained relative to clock; zero keeps everything.
func NewAircraftRawData(id Identifier, info AircraftInfo, maxAge time.Duration, clock Clock) *AircraftRawData {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AircraftRawData{
		Identifier: id,
		Info:       info,
		maxAge:     maxAge,
		clock:      clock,
	}
}

// IsEmpty reports whether no vector is retained.
func (d *AircraftRawData) IsEmpty() bool {
	return len(d.buckets) == 0
}

// Len returns the number of retained vectors.
func (d *AircraftRawData) Len() int {
	n := 0
	for _, b := range d.buckets {
		n += len(b.vectors)
	}
	return n
}

// AddStateVector stores v in the bucket of its second. A vector from a
// source that already reported for that second is dropped. Afterwards
// buckets older than the retention window are evicted. Returns whether v
// was stored.
func (d *AircraftRawData) AddStateVector(v StateVector) bool {
	if v.Fix.Time.IsZero() {
		panic("tracking: state vector without timestamp")
	}
	ts := v.Fix.Time.Unix()

	i := sort.Search(len(d.buckets), func(i int) bool { return d.buckets[i].ts >= ts })
	added := true
	switch {
	case i < len(d.buckets) && d.buckets[i].ts == ts:
		for _, existing := range d.buckets[i].vectors {
			if existing.Source == v.Source {
				added = false
				break
			}
		}
		if added {
			d.buckets[i].vectors = append(d.buckets[i].vectors, v)
		}
	default:
		d.buckets = append(d.buckets, bucket{})
		copy(d.buckets[i+1:], d.buckets[i:])
		d.buckets[i] = bucket{ts: ts, vectors: []StateVector{v}}
	}

	if d.evict(ts) {
		return false
	}
	return added
}

// evict drops every bucket whose age exceeds maxAge and reports whether the
// bucket at ts was among them.
func (d *AircraftRawData) evict(ts int64) bool {
	if d.maxAge <= 0 {
		return false
	}
	cutoff := d.clock.Now().Add(-d.maxAge)
	dropped := time.Unix(ts, 0).Before(cutoff)
	n := 0
	for n < len(d.buckets) && time.Unix(d.buckets[n].ts, 0).Before(cutoff) {
		n++
	}
	if n > 0 {
		d.buckets = append(d.buckets[:0], d.buckets[n:]...)
	}
	return dropped
}

// AddData merges an incoming record for the same aircraft: info and
// identifier are combined by source priority, then its vectors are added.
func (d *AircraftRawData) AddData(other *AircraftRawData) {
	d.Info.Combine(other.Info)
	d.Identifier.Combine(other.Identifier)
	for _, v := range other.ListAllStateVectors() {
		d.AddStateVector(v)
	}
}

// MergeDuplicates absorbs the history of other, a separately tracked entry
// later found to be the same aircraft. Info is combined and every vector is
// added. Identifiers are left alone: the duplicate came from a bad identity
// match and blending the two would carry the mistake forward.
func (d *AircraftRawData) MergeDuplicates(other *AircraftRawData) {
	d.Info.Combine(other.Info)
	for _, v := range other.ListAllStateVectors() {
		d.AddStateVector(v)
	}
}

// StateVectorOrPrevious returns the newest vector at or before t, with
// fields it lacks filled in from progressively older vectors until it is
// complete or history runs out. Returns false when nothing is at or before t.
func (d *AircraftRawData) StateVectorOrPrevious(t time.Time) (StateVector, bool) {
	var result StateVector
	found := false

	for i := len(d.buckets) - 1; i >= 0; i-- {
		b := d.buckets[i]
		if time.Unix(b.ts, 0).After(t) {
			continue
		}
		for j := len(b.vectors) - 1; j >= 0; j-- {
			if !found {
				result = b.vectors[j]
				found = true
			} else {
				result = result.completeFrom(b.vectors[j])
			}
			if result.isFullyFilled() {
				return result, true
			}
		}
	}
	return result, found
}

// ListAllStateVectors returns every vector, oldest first.
func (d *AircraftRawData) ListAllStateVectors() []StateVector {
	out := make([]StateVector, 0, d.Len())
	for _, b := range d.buckets {
		out = append(out, b.vectors...)
	}
	return out
}

// ListParticipatingDataSources returns each source that contributed a
// retained vector, in order of first appearance.
func (d *AircraftRawData) ListParticipatingDataSources() []adsb.Source {
	var out []adsb.Source
	seen := make(map[adsb.Source]bool)
	for _, b := range d.buckets {
		for _, v := range b.vectors {
			if !seen[v.Source] {
				seen[v.Source] = true
				out = append(out, v.Source)
			}
		}
	}
	return out
}

// RemoveSource drops every vector reported by src and reports whether the
// history is empty afterwards.
func (d *AircraftRawData) RemoveSource(src adsb.Source) bool {
	kept := d.buckets[:0]
	for _, b := range d.buckets {
		vs := b.vectors[:0]
		for _, v := range b.vectors {
			if v.Source != src {
				vs = append(vs, v)
			}
		}
		if len(vs) > 0 {
			b.vectors = vs
			kept = append(kept, b)
		}
	}
	d.buckets = kept
	return d.IsEmpty()
}

// YoungestTime returns the time of the newest retained vector.
func (d *AircraftRawData) YoungestTime() (time.Time, bool) {
	if d.IsEmpty() {
		return time.Time{}, false
	}
	return time.Unix(d.buckets[len(d.buckets)-1].ts, 0), true
}

// newestFix returns the most recently stored fix of the newest second.
func (d *AircraftRawData) newestFix() (Fix, bool) {
	if d.IsEmpty() {
		return Fix{}, false
	}
	b := d.buckets[len(d.buckets)-1]
	return b.vectors[len(b.vectors)-1].Fix, true
}

// nearestFix returns the retained fix closest in time to t.
func (d *AircraftRawData) nearestFix(t time.Time) (Fix, bool) {
	if d.IsEmpty() {
		return Fix{}, false
	}
	ts := t.Unix()
	i := sort.Search(len(d.buckets), func(i int) bool { return d.buckets[i].ts >= ts })
	switch {
	case i == len(d.buckets):
		i--
	case i > 0 && ts-d.buckets[i-1].ts < d.buckets[i].ts-ts:
		i--
	}
	vs := d.buckets[i].vectors
	return vs[len(vs)-1].Fix, true
}

// isNear reports whether the newest fix of candidate lies within threshold
// meters of d's fix nearest to it in time.
func (d *AircraftRawData) isNear(candidate *AircraftRawData, threshold float64) bool {
	cf, ok := candidate.newestFix()
	if !ok {
		return false
	}
	df, ok := d.nearestFix(cf.Time)
	if !ok {
		return false
	}
	return df.DistanceTo(cf) <= threshold
}

// sameAircraft matches d against candidate, using the squawk proximity rule
// with the given threshold.
func (d *AircraftRawData) sameAircraft(candidate *AircraftRawData, threshold float64) bool {
	return d.Identifier.SameAircraft(candidate.Identifier, func() bool {
		return d.isNear(candidate, threshold)
	})
}
