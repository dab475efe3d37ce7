package scoring

import (
	"math"

	"github.com/okian/posematch/internal/domain/skeleton"
)

type vec3 struct{ x, y, z float64 }

func fromPoint(p skeleton.Point) vec3 { return vec3{p.X, p.Y, p.Z} }

func (v vec3) sub(o vec3) vec3 { return vec3{v.x - o.x, v.y - o.y, v.z - o.z} }

func (v vec3) scale(k float64) vec3 { return vec3{v.x * k, v.y * k, v.z * k} }

func (v vec3) dot(o vec3) float64 { return v.x*o.x + v.y*o.y + v.z*o.z }

func (v vec3) cross(o vec3) vec3 {
	return vec3{
		v.y*o.z - v.z*o.y,
		v.z*o.x - v.x*o.z,
		v.x*o.y - v.y*o.x,
	}
}

func (v vec3) norm() float64 { return math.Sqrt(v.dot(v)) }
