// Package scoring computes the dissimilarity between two skeleton records and
// classifies scores against a match threshold.
package scoring

import (
	"math"

	"github.com/okian/posematch/internal/domain/skeleton"
)

// Default scoring configuration constants.
const (
	defaultVisibilityFloor   = 0.6
	defaultDistanceWeight    = 0.6
	defaultOrientationWeight = 0.4
	defaultAngleScale        = 0.1
	minNormalMagnitude       = 1e-6
)

// Mode selects a preset joint table and orientation setting.
type Mode string

// Supported presets.
const (
	// Weighted uses the core/limb/extremity weight table and torso orientation.
	Weighted Mode = "weighted"
	// Uniform weighs the sixteen body joints equally and skips orientation.
	Uniform Mode = "uniform"
)

// defaultWeights favours torso joints; extremity landmarks are noisier.
var defaultWeights = map[skeleton.Joint]float64{
	skeleton.LeftShoulder:  1.5,
	skeleton.RightShoulder: 1.5,
	skeleton.LeftHip:       1.5,
	skeleton.RightHip:      1.5,
	skeleton.LeftElbow:     1.0,
	skeleton.RightElbow:    1.0,
	skeleton.LeftKnee:      1.0,
	skeleton.RightKnee:     1.0,
	skeleton.LeftWrist:     0.8,
	skeleton.RightWrist:    0.8,
	skeleton.LeftAnkle:     0.8,
	skeleton.RightAnkle:    0.8,
}

// canonicalNormal is used whenever the torso plane cannot be trusted.
var canonicalNormal = vec3{0, 1, 0}

// DefaultWeights returns a copy of the weighted preset's joint table.
func DefaultWeights() map[skeleton.Joint]float64 {
	out := make(map[skeleton.Joint]float64, len(defaultWeights))
	for j, w := range defaultWeights {
		out[j] = w
	}
	return out
}

type jointWeight struct {
	joint  skeleton.Joint
	weight float64
}

// newTable orders weights canonically so sums are reproducible. Unknown
// joints and non-positive or non-finite weights are dropped.
func newTable(weights map[skeleton.Joint]float64) []jointWeight {
	table := make([]jointWeight, 0, len(weights))
	for _, j := range skeleton.Joints() {
		w, ok := weights[j]
		if !ok || w <= 0 || math.IsInf(w, 0) || math.IsNaN(w) {
			continue
		}
		table = append(table, jointWeight{joint: j, weight: w})
	}
	return table
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithMode applies a preset. Options after it may refine the preset.
func WithMode(m Mode) Option {
	return func(s *Scorer) {
		switch m {
		case Uniform:
			uniform := make(map[skeleton.Joint]float64, len(skeleton.BodyJoints()))
			for _, j := range skeleton.BodyJoints() {
				uniform[j] = 1
			}
			s.weights = newTable(uniform)
			s.orientation = false
		case Weighted:
			s.weights = newTable(defaultWeights)
			s.orientation = true
		}
	}
}

// WithJointWeights replaces the joint weight table. An empty or entirely
// invalid table leaves the current one in place.
func WithJointWeights(weights map[skeleton.Joint]float64) Option {
	return func(s *Scorer) {
		if table := newTable(weights); len(table) > 0 {
			s.weights = table
		}
	}
}

// WithVisibilityFloor sets the minimum visibility a torso landmark needs to
// take part in the orientation term.
func WithVisibilityFloor(floor float64) Option {
	return func(s *Scorer) {
		if floor >= 0 && floor <= 1 {
			s.visibilityFloor = floor
		}
	}
}

// WithFusionWeights sets the distance and orientation weights of the final score.
func WithFusionWeights(distance, orientation float64) Option {
	return func(s *Scorer) {
		if distance >= 0 && orientation >= 0 && distance+orientation > 0 {
			s.distanceWeight = distance
			s.orientationWeight = orientation
		}
	}
}

// WithAngleScale sets the factor applied to the torso angle in radians.
func WithAngleScale(scale float64) Option {
	return func(s *Scorer) {
		if scale >= 0 {
			s.angleScale = scale
		}
	}
}

// WithOrientation toggles the torso orientation term.
func WithOrientation(enabled bool) Option {
	return func(s *Scorer) {
		s.orientation = enabled
	}
}

// Scorer computes a dissimilarity score between two records. It holds only
// configuration and is safe for concurrent use.
type Scorer struct {
	weights           []jointWeight
	visibilityFloor   float64
	distanceWeight    float64
	orientationWeight float64
	angleScale        float64
	orientation       bool
}

// New creates a Scorer using the weighted preset, then applies opts.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		weights:           newTable(defaultWeights),
		visibilityFloor:   defaultVisibilityFloor,
		distanceWeight:    defaultDistanceWeight,
		orientationWeight: defaultOrientationWeight,
		angleScale:        defaultAngleScale,
		orientation:       true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Orientation reports whether the orientation term takes part in Score.
func (s *Scorer) Orientation() bool { return s.orientation }

// Weights returns a copy of the active joint weight table.
func (s *Scorer) Weights() map[skeleton.Joint]float64 {
	out := make(map[skeleton.Joint]float64, len(s.weights))
	for _, jw := range s.weights {
		out[jw.joint] = jw.weight
	}
	return out
}

// Score returns a non-negative dissimilarity between a and b; lower is more
// similar. Records sharing no weighted joint score +Inf.
func (s *Scorer) Score(a, b skeleton.Record) float64 {
	joint := s.JointDistance(a, b)
	if math.IsInf(joint, 1) {
		return joint
	}
	if !s.orientation {
		return joint
	}
	return s.distanceWeight*joint + s.orientationWeight*s.angleScale*s.TorsoAngle(a, b)
}

// JointDistance is the visibility-weighted average distance over the joints
// present in both records, or +Inf when there are none.
func (s *Scorer) JointDistance(a, b skeleton.Record) float64 {
	var sum, norm float64
	for _, jw := range s.weights {
		pa, ok := a.Get(jw.joint)
		if !ok {
			continue
		}
		pb, ok := b.Get(jw.joint)
		if !ok {
			continue
		}
		vw := 0.5 + 0.5*math.Min(pa.Visibility, pb.Visibility)
		sum += pa.Distance(pb) * jw.weight * vw
		norm += jw.weight * vw
	}
	if norm == 0 {
		return math.Inf(1)
	}
	return sum / norm
}

// TorsoAngle returns the angle in radians between the torso normals of a and b.
func (s *Scorer) TorsoAngle(a, b skeleton.Record) float64 {
	na, nb := s.torsoNormal(a), s.torsoNormal(b)
	if na == nb {
		return 0
	}
	dot := na.dot(nb)
	return math.Acos(math.Max(-1, math.Min(1, dot)))
}

// torsoNormal is the unit normal of the shoulder/hip plane. It falls back to
// the canonical vector when that plane cannot be trusted.
func (s *Scorer) torsoNormal(r skeleton.Record) vec3 {
	ls, ok1 := r.Get(skeleton.LeftShoulder)
	rs, ok2 := r.Get(skeleton.RightShoulder)
	rh, ok3 := r.Get(skeleton.RightHip)
	if !ok1 || !ok2 || !ok3 {
		return canonicalNormal
	}
	if ls.Visibility < s.visibilityFloor || rs.Visibility < s.visibilityFloor || rh.Visibility < s.visibilityFloor {
		return canonicalNormal
	}

	origin := fromPoint(ls)
	n := fromPoint(rs).sub(origin).cross(fromPoint(rh).sub(origin))
	mag := n.norm()
	if mag < minNormalMagnitude {
		return canonicalNormal
	}
	return n.scale(1 / mag)
}
