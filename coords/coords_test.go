// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package coords

import (
	"context"
	"testing"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

type testResolver struct {
	names []string
	c     Coordinates
	err   error
}

func (r *testResolver) Resolve(ctx context.Context, name string) (Coordinates, error) {
	r.names = append(r.names, name)
	return r.c, r.err
}

func TestCoords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	Convey("Parse works", t, func() {
		Convey("decimal degrees with a comma", func() {
			c, err := Parse(ctx, "265.05, 69.0", nil)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, Coordinates{RA: 265.05, Dec: 69.0})
		})

		Convey("decimal degrees with spaces", func() {
			c, err := Parse(ctx, " 150 -20.5 ", nil)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, Coordinates{RA: 150, Dec: -20.5})
		})

		Convey("sexagesimal with unit letters", func() {
			c, err := Parse(ctx, "10h00m00s +20d30m00s", nil)
			So(err, ShouldBeNil)
			So(testutil.Round(c.RA, 6), ShouldEqual, 150.0)
			So(testutil.Round(c.Dec, 6), ShouldEqual, 20.5)
			So(testutil.Round(c.RAHours(), 6), ShouldEqual, 10.0)
		})

		Convey("sexagesimal with colons", func() {
			c, err := Parse(ctx, "12:00:00 -00:30:00", nil)
			So(err, ShouldBeNil)
			So(testutil.Round(c.RA, 6), ShouldEqual, 180.0)
			So(testutil.Round(c.Dec, 6), ShouldEqual, -0.5)
		})

		Convey("sexagesimal with spaces", func() {
			c, err := Parse(ctx, "1 30 00 +45 00 00", nil)
			So(err, ShouldBeNil)
			So(testutil.Round(c.RA, 6), ShouldEqual, 22.5)
			So(testutil.Round(c.Dec, 6), ShouldEqual, 45.0)
		})

		Convey("object names go to the resolver", func() {
			r := &testResolver{c: Coordinates{RA: 202.469575, Dec: 47.195258}}
			c, err := Parse(ctx, "M51", r)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, r.c)
			So(r.names, ShouldResemble, []string{"M51"})
		})

		Convey("numeric-looking names go to the resolver", func() {
			r := &testResolver{c: Coordinates{RA: 187.27, Dec: 2.05}}
			c, err := Parse(ctx, "3C 273", r)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, r.c)
		})

		Convey("resolver errors are annotated", func() {
			r := &testResolver{err: errors.Reason("not found")}
			_, err := Parse(ctx, "Nowhere", r)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "not found")
		})

		Convey("errors", func() {
			_, err := Parse(ctx, "", nil)
			So(err, ShouldNotBeNil)
			_, err = Parse(ctx, "M51", nil)
			So(err, ShouldNotBeNil)
			_, err = Parse(ctx, "400, 10", nil)
			So(err, ShouldNotBeNil)
			_, err = Parse(ctx, "10, 95", nil)
			So(err, ShouldNotBeNil)
			_, err = Parse(ctx, "10 20 30", nil)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("ParseAngle works", t, func() {
		Convey("units", func() {
			for s, deg := range map[string]float64{
				"14'":        14.0 / 60.0,
				"14 arcmin":  14.0 / 60.0,
				"0.5 deg":    0.5,
				"2d":         2.0,
				"36\"":       0.01,
				"36 arcsec":  0.01,
				"0 arcmin":   0.0,
				"1 degrees":  1.0,
				"3.6 asec":   0.001,
				"0.5 degree": 0.5,
			} {
				a, err := ParseAngle(s)
				So(err, ShouldBeNil)
				So(testutil.Round(a.Degrees(), 9), ShouldEqual, testutil.Round(deg, 9))
			}
		})

		Convey("radians", func() {
			a, err := ParseAngle("3.141592653589793 rad")
			So(err, ShouldBeNil)
			So(testutil.Round(a.Degrees(), 6), ShouldEqual, 180.0)
		})

		Convey("arcminutes", func() {
			So(testutil.Round(Angle(0.5).Arcminutes(), 6), ShouldEqual, 30.0)
		})

		Convey("errors", func() {
			for _, s := range []string{"", "14", "fourteen arcmin", "-1 deg", "1 parsec"} {
				_, err := ParseAngle(s)
				So(err, ShouldNotBeNil)
			}
		})
	})

	Convey("Sesame resolver", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()
		ctx := fetch.UseClient(context.Background(), server.Client())
		s := NewSesame(server.URL() + "/sesame")

		Convey("finds the J2000 line", func() {
			server.ResponseBody = []string{`# M51	#Q12345
#=S=Simbad (via url):    1
%@ 1234567
%I.0 M  51
%C.0 Sy2
%J 202.469575 +47.195258 = 13 29 52.69 +47 11 42.9
%#B 2006AJ....131.1163S
`}
			c, err := s.Resolve(ctx, "M51")
			So(err, ShouldBeNil)
			So(c, ShouldResemble, Coordinates{RA: 202.469575, Dec: 47.195258})
			So(server.RequestPath, ShouldEqual, "/sesame/-oI/A")
		})

		Convey("reports unresolved names", func() {
			server.ResponseBody = []string{"# Nowhere\n#! *** Nothing found *** \n"}
			_, err := s.Resolve(ctx, "Nowhere")
			So(err, ShouldNotBeNil)
		})

		Convey("defaults to CDS", func() {
			So(NewSesame("").URL, ShouldEqual, SesameURL)
		})
	})
}
