package skeleton

import (
	"encoding/json"
	"fmt"
)

// wirePoint uses pointers so absent fields can be told apart from zeros.
type wirePoint struct {
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Z          *float64 `json:"z"`
	Visibility *float64 `json:"visibility"`
}

// Parse decodes a skeleton object keyed by joint name. Unknown keys, such as
// the tags the extractor appends to its frame files, are ignored. A known
// joint with a missing field or an out-of-range visibility is malformed.
func Parse(data []byte) (Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if raw == nil {
		return Record{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	points := make(map[Joint]Point, len(raw))
	for key, msg := range raw {
		j := Joint(key)
		if !Known(j) {
			continue
		}
		var wp wirePoint
		if err := json.Unmarshal(msg, &wp); err != nil {
			return Record{}, fmt.Errorf("%w: joint %s: %w", ErrMalformed, key, err)
		}
		if wp.X == nil || wp.Y == nil || wp.Z == nil || wp.Visibility == nil {
			return Record{}, fmt.Errorf("%w: joint %s: missing coordinate or visibility", ErrMalformed, key)
		}
		p := Point{X: *wp.X, Y: *wp.Y, Z: *wp.Z, Visibility: *wp.Visibility}
		if !p.Valid() {
			return Record{}, fmt.Errorf("%w: joint %s: visibility %v outside [0,1]", ErrMalformed, key, p.Visibility)
		}
		points[j] = p
	}
	return Record{points: points}, nil
}

// MarshalJSON encodes the record in the same shape Parse reads.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]Point, len(r.points))
	for j, p := range r.points {
		out[string(j)] = p
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler using Parse.
func (r *Record) UnmarshalJSON(data []byte) error {
	rec, err := Parse(data)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}
