package skeleton_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/okian/posematch/internal/domain/skeleton"
	. "github.com/smartystreets/goconvey/convey"
)

// frameFile mirrors what the extractor writes: joints plus tag fields.
const frameFile = `{
    "left_shoulder": {"x": 0.41, "y": 0.32, "z": -0.12, "visibility": 0.99},
    "right_shoulder": {"x": 0.58, "y": 0.31, "z": -0.10, "visibility": 0.98},
    "right_hip": {"x": 0.55, "y": 0.61, "z": 0.01, "visibility": 0.91},
    "nose": {"x": 0.5, "y": 0.2, "z": -0.3, "visibility": 1},
    "tail": {"x": 1, "y": 1, "z": 1, "visibility": 1},
    "type": "video_frame",
    "frame_number": 45,
    "time_seconds": 1.5,
    "time_format": "0:00:01.500000"
}`

func TestParse(t *testing.T) {
	Convey("Given an extractor frame file", t, func() {
		rec, err := skeleton.Parse([]byte(frameFile))

		Convey("Then known joints are decoded and everything else is ignored", func() {
			So(err, ShouldBeNil)
			So(rec.Len(), ShouldEqual, 4)
			So(rec.Joints(), ShouldResemble, []skeleton.Joint{
				skeleton.Nose, skeleton.LeftShoulder, skeleton.RightShoulder, skeleton.RightHip,
			})
			p, ok := rec.Get(skeleton.RightHip)
			So(ok, ShouldBeTrue)
			So(p, ShouldResemble, skeleton.Point{X: 0.55, Y: 0.61, Z: 0.01, Visibility: 0.91})
			So(rec.Has(skeleton.LeftWrist), ShouldBeFalse)
		})
	})

	Convey("Given malformed input", t, func() {
		cases := []struct {
			name string
			data string
		}{
			{"not json", `{"left_hip":`},
			{"an array", `[1,2,3]`},
			{"null", `null`},
			{"a joint without visibility", `{"left_hip": {"x": 0, "y": 0, "z": 0}}`},
			{"a joint that is not an object", `{"left_hip": 3}`},
			{"visibility above one", `{"left_hip": {"x": 0, "y": 0, "z": 0, "visibility": 1.2}}`},
			{"negative visibility", `{"left_hip": {"x": 0, "y": 0, "z": 0, "visibility": -0.1}}`},
		}
		for _, tc := range cases {
			_, err := skeleton.Parse([]byte(tc.data))

			Convey("Then "+tc.name+" is reported as malformed", func() {
				So(errors.Is(err, skeleton.ErrMalformed), ShouldBeTrue)
			})
		}
	})

	Convey("Given an empty object", t, func() {
		rec, err := skeleton.Parse([]byte(`{}`))

		Convey("Then the record is empty but valid", func() {
			So(err, ShouldBeNil)
			So(rec.Empty(), ShouldBeTrue)
		})
	})
}

func TestRecordCodec(t *testing.T) {
	Convey("Given a record decoded from a frame file", t, func() {
		rec, err := skeleton.Parse([]byte(frameFile))
		So(err, ShouldBeNil)

		Convey("When it is encoded and embedded in another document", func() {
			doc := struct {
				FrameID  string          `json:"frame_id"`
				Skeleton skeleton.Record `json:"skeleton"`
			}{FrameID: "f1", Skeleton: rec}
			data, err := json.Marshal(doc)
			So(err, ShouldBeNil)

			var back struct {
				FrameID  string          `json:"frame_id"`
				Skeleton skeleton.Record `json:"skeleton"`
			}
			So(json.Unmarshal(data, &back), ShouldBeNil)

			Convey("Then the joints survive unchanged", func() {
				So(back.FrameID, ShouldEqual, "f1")
				So(back.Skeleton.Points(), ShouldResemble, rec.Points())
			})
		})
	})
}

func TestRecordImmutability(t *testing.T) {
	Convey("Given a record built from a caller-owned map", t, func() {
		src := map[skeleton.Joint]skeleton.Point{
			skeleton.LeftHip:  {X: 0.1, Y: 0.2, Z: 0.3, Visibility: 0.9},
			skeleton.RightHip: {X: 0.2, Y: 0.2, Z: 0.3, Visibility: 0.9},
			"tail":            {X: 1, Y: 1, Z: 1, Visibility: 1},
			skeleton.LeftKnee: {X: math.NaN(), Y: 0, Z: 0, Visibility: 1},
		}
		rec := skeleton.NewRecord(src)

		Convey("Then unknown joints and non-finite points are dropped", func() {
			So(rec.Len(), ShouldEqual, 2)
			So(rec.Has(skeleton.LeftKnee), ShouldBeFalse)
		})

		Convey("When the source map and the returned copies are mutated", func() {
			src[skeleton.LeftHip] = skeleton.Point{X: 9, Visibility: 1}
			pts := rec.Points()
			delete(pts, skeleton.RightHip)

			Convey("Then the record is unaffected", func() {
				p, _ := rec.Get(skeleton.LeftHip)
				So(p.X, ShouldEqual, 0.1)
				So(rec.Has(skeleton.RightHip), ShouldBeTrue)
			})
		})

		Convey("When deriving records with and without joints", func() {
			fewer := rec.Without(skeleton.LeftHip)
			more := rec.With(skeleton.LeftAnkle, skeleton.Point{Visibility: 0.5})

			Convey("Then the original keeps its joints", func() {
				So(rec.Len(), ShouldEqual, 2)
				So(fewer.Len(), ShouldEqual, 1)
				So(more.Len(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given the joint tables", t, func() {
		Convey("Then the body set is a subset of the canonical set", func() {
			So(len(skeleton.Joints()), ShouldEqual, 25)
			So(len(skeleton.BodyJoints()), ShouldEqual, 16)
			for _, j := range skeleton.BodyJoints() {
				So(skeleton.Known(j), ShouldBeTrue)
			}
			So(skeleton.Known("tail"), ShouldBeFalse)
		})

		Convey("Then distance is Euclidean in three dimensions", func() {
			a := skeleton.Point{X: 0, Y: 0, Z: 0}
			b := skeleton.Point{X: 1, Y: 2, Z: 2}
			So(a.Distance(b), ShouldEqual, 3)
		})
	})
}
