// Package skeleton defines the joint set and the immutable skeleton record
// that both sides of every pose comparison operate on.
package skeleton

import (
	"math"
)

// Joint names one anatomical landmark produced by the pose extractor.
type Joint string

// Canonical joint names.
const (
	Nose           Joint = "nose"
	LeftEyeInner   Joint = "left_eye_inner"
	LeftEye        Joint = "left_eye"
	LeftEyeOuter   Joint = "left_eye_outer"
	RightEyeInner  Joint = "right_eye_inner"
	RightEye       Joint = "right_eye"
	RightEyeOuter  Joint = "right_eye_outer"
	LeftEar        Joint = "left_ear"
	RightEar       Joint = "right_ear"
	LeftShoulder   Joint = "left_shoulder"
	RightShoulder  Joint = "right_shoulder"
	LeftElbow      Joint = "left_elbow"
	RightElbow     Joint = "right_elbow"
	LeftWrist      Joint = "left_wrist"
	RightWrist     Joint = "right_wrist"
	LeftHip        Joint = "left_hip"
	RightHip       Joint = "right_hip"
	LeftKnee       Joint = "left_knee"
	RightKnee      Joint = "right_knee"
	LeftAnkle      Joint = "left_ankle"
	RightAnkle     Joint = "right_ankle"
	LeftHeel       Joint = "left_heel"
	RightHeel      Joint = "right_heel"
	LeftFootIndex  Joint = "left_foot_index"
	RightFootIndex Joint = "right_foot_index"
)

// allJoints lists every known joint in extractor landmark order.
var allJoints = []Joint{
	Nose,
	LeftEyeInner, LeftEye, LeftEyeOuter,
	RightEyeInner, RightEye, RightEyeOuter,
	LeftEar, RightEar,
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
	LeftHeel, RightHeel,
	LeftFootIndex, RightFootIndex,
}

// bodyJoints are the sixteen landmarks kept by the extractor for matching.
var bodyJoints = []Joint{
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
	LeftHeel, RightHeel,
	LeftFootIndex, RightFootIndex,
}

var known = func() map[Joint]struct{} {
	m := make(map[Joint]struct{}, len(allJoints))
	for _, j := range allJoints {
		m[j] = struct{}{}
	}
	return m
}()

// Joints returns every known joint.
func Joints() []Joint { return append([]Joint(nil), allJoints...) }

// BodyJoints returns the shoulder-to-foot joints.
func BodyJoints() []Joint { return append([]Joint(nil), bodyJoints...) }

// Known reports whether j is a canonical joint name.
func Known(j Joint) bool {
	_, ok := known[j]
	return ok
}

// Point is one detected joint.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Valid reports whether coordinates are finite and visibility is within [0,1].
func (p Point) Valid() bool {
	for _, v := range []float64{p.X, p.Y, p.Z, p.Visibility} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.Visibility >= 0 && p.Visibility <= 1
}

// Distance returns the 3D Euclidean distance to q.
func (p Point) Distance(q Point) float64 {
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Record maps joints to points for one pose at one moment. The zero value is
// an empty record. A Record never changes after construction.
type Record struct {
	points map[Joint]Point
}

// NewRecord copies points into a Record. Unknown joints and invalid points
// are dropped.
func NewRecord(points map[Joint]Point) Record {
	r := Record{points: make(map[Joint]Point, len(points))}
	for j, p := range points {
		if Known(j) && p.Valid() {
			r.points[j] = p
		}
	}
	return r
}

// Get returns the point for j.
func (r Record) Get(j Joint) (Point, bool) {
	p, ok := r.points[j]
	return p, ok
}

// Has reports whether j was detected.
func (r Record) Has(j Joint) bool {
	_, ok := r.points[j]
	return ok
}

// Len returns the number of detected joints.
func (r Record) Len() int { return len(r.points) }

// Empty reports whether no joint was detected.
func (r Record) Empty() bool { return len(r.points) == 0 }

// Joints returns the detected joints in canonical order.
func (r Record) Joints() []Joint {
	out := make([]Joint, 0, len(r.points))
	for _, j := range allJoints {
		if _, ok := r.points[j]; ok {
			out = append(out, j)
		}
	}
	return out
}

// Points returns a copy of the joint map.
func (r Record) Points() map[Joint]Point {
	out := make(map[Joint]Point, len(r.points))
	for j, p := range r.points {
		out[j] = p
	}
	return out
}

// Without returns a copy of r lacking the given joints.
func (r Record) Without(joints ...Joint) Record {
	pts := r.Points()
	for _, j := range joints {
		delete(pts, j)
	}
	return Record{points: pts}
}

// With returns a copy of r with j set to p.
func (r Record) With(j Joint, p Point) Record {
	pts := r.Points()
	pts[j] = p
	return NewRecord(pts)
}
