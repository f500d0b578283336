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

package esasky

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stockparfait/esasky/coords"
	"github.com/stockparfait/esasky/table"
	"github.com/stockparfait/esasky/tap"
	"github.com/stockparfait/logging"

	. "github.com/smartystreets/goconvey/convey"
)

const testObservations = `{"observations": [
  {"mission": "HST", "tapTable": "observations.mv_hst_fdw", "isSurveyMission": false,
   "metadata": [{"label": "Observation id", "tapName": "observation_id"},
                {"label": "Product URL", "tapName": "product_url"}]},
  {"mission": "Herschel", "tapTable": "observations.mv_herschel_fdw",
   "metadata": [{"label": "Observation id", "tapName": "observation_id"},
                {"label": "Product URL", "tapName": "product_url"},
                {"label": "Filter", "tapName": "filter"}]},
  {"mission": "INTEGRAL", "tapTable": "observations.mv_integral_fdw",
   "metadata": [{"label": "Observation id", "tapName": "observation_id"},
                {"label": "Product URL", "tapName": "product_url"}]},
  {"mission": "DSS", "tapTable": "observations.mv_dss_fdw", "isSurveyMission": true,
   "metadata": [{"label": "Observation id", "tapName": "observation_id"}]}
]}`

const testCatalogs = `{"catalogs": [
  {"mission": "Gaia DR2", "tapTable": "catalogues.mv_gaia_dr2_fdw",
   "sourceLimit": 50000, "orderBy": "phot_g_mean_mag", "posTapColumn": "pos",
   "metadata": [{"label": "Name", "tapName": "designation"},
                {"label": "RA", "tapName": "ra"}]},
  {"mission": "Hipparcos", "tapTable": "catalogues.mv_hipparcos_fdw",
   "sourceLimit": 1000, "orderBy": "vmag", "posTapColumn": "pos",
   "metadata": [{"label": "Name", "tapName": "hip"}]}
]}`

type testFile struct {
	body        []byte
	disposition string
}

// testService imitates the ESASky endpoints: the registry documents, the TAP
// sync endpoint serving tables by their TAP table name, and product files.
type testService struct {
	server *httptest.Server

	mu           sync.Mutex
	observations string
	catalogs     string
	tables       map[string]*table.Table
	files        map[string]testFile
	queries      []string
	requests     map[string]int // by path
}

func newTestService() *testService {
	s := &testService{
		observations: testObservations,
		catalogs:     testCatalogs,
		tables:       make(map[string]*table.Table),
		files:        make(map[string]testFile),
		requests:     make(map[string]int),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *testService) Close() { s.server.Close() }

func (s *testService) URL() string { return s.server.URL + "/esasky-tap" }

func (s *testService) FileURL(name string) string {
	return s.server.URL + "/products/" + name
}

func (s *testService) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *testService) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.queries...)
}

func (s *testService) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.URL.Path]++

	switch {
	case r.URL.Path == "/esasky-tap/observations":
		w.Write([]byte(s.observations))
	case r.URL.Path == "/esasky-tap/catalogs":
		w.Write([]byte(s.catalogs))
	case r.URL.Path == "/esasky-tap/tap/sync":
		q := r.URL.Query().Get("QUERY")
		s.queries = append(s.queries, q)
		t := table.NewTable()
		for name, tt := range s.tables {
			if strings.Contains(q, " FROM "+name+" ") {
				t = tt
			}
		}
		doc, err := tap.TestVOTable(t)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Write([]byte(doc))
	case strings.HasPrefix(r.URL.Path, "/products/"):
		f, ok := s.files[strings.TrimPrefix(r.URL.Path, "/products/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if f.disposition != "" {
			w.Header().Set("Content-Disposition", f.disposition)
		}
		w.Write(f.body)
	default:
		http.NotFound(w, r)
	}
}

type testProduct struct {
	path   string
	closed bool
}

func (p *testProduct) Path() string { return p.path }

func (p *testProduct) Close() error {
	p.closed = true
	return nil
}

type testOpener struct {
	opened []*testProduct
}

func (o *testOpener) Open(path string) (Product, error) {
	p := &testProduct{path: path}
	o.opened = append(o.opened, p)
	return p, nil
}

type testResolver struct{}

func (testResolver) Resolve(ctx context.Context, name string) (coords.Coordinates, error) {
	return coords.NewCoordinates(202.4695833, 47.1952778)
}

type tarMember struct {
	name string
	body string
	dir  bool
}

func testTar(compress bool, members ...tarMember) []byte {
	var buf bytes.Buffer
	var gz *gzip.Writer
	tw := tar.NewWriter(&buf)
	if compress {
		gz = gzip.NewWriter(&buf)
		tw = tar.NewWriter(gz)
	}
	for _, m := range members {
		hdr := &tar.Header{Name: m.name, Mode: 0644, Size: int64(len(m.body)),
			Typeflag: tar.TypeReg}
		if m.dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0755
		}
		if err := tw.WriteHeader(hdr); err != nil {
			panic(err)
		}
		if _, err := tw.Write([]byte(m.body)); err != nil {
			panic(err)
		}
	}
	if err := tw.Close(); err != nil {
		panic(err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

func readFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return "error: " + err.Error()
	}
	return string(b)
}

func TestESASky(t *testing.T) {
	t.Parallel()
	tmpdir, tmpdirErr := os.MkdirTemp("", "test_esasky")
	defer os.RemoveAll(tmpdir)

	Convey("Test setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	ctx := logging.Use(context.Background(), logging.DefaultGoLogger(logging.Error))

	s := newTestService()
	defer s.Close()

	s.tables["observations.mv_hst_fdw"] = &table.Table{
		Columns: []table.Column{{Name: "observation_id"}, {Name: "product_url"}},
		Rows: []table.Row{
			{"hst1", s.FileURL("hst1.fits")},
			{"hst2", s.FileURL("retrieve?id=hst2")},
		},
	}
	s.tables["observations.mv_herschel_fdw"] = &table.Table{
		Columns: []table.Column{
			{Name: "observation_id"}, {Name: "product_url"}, {Name: "filter"}},
		Rows: []table.Row{{"1342", s.FileURL("herschel?id=1342"), "250, 350"}},
	}
	s.tables["observations.mv_integral_fdw"] = &table.Table{
		Columns: []table.Column{{Name: "observation_id"}, {Name: "product_url"}},
		Rows:    []table.Row{{"int1", s.FileURL("int1.fits")}},
	}
	s.tables["catalogues.mv_gaia_dr2_fdw"] = &table.Table{
		Columns: []table.Column{{Name: "designation"}, {Name: "ra"}},
		Rows:    []table.Row{{"Gaia DR2 1", "202.47"}, {"Gaia DR2 2", "202.48"}},
	}
	s.files["hst1.fits"] = testFile{body: []byte("hst1 data")}
	s.files["retrieve"] = testFile{
		body:        []byte("hst2 data"),
		disposition: `attachment; filename="hst2.FTZ"`,
	}
	s.files["int1.fits"] = testFile{body: []byte("int1 data")}
	archive := []tarMember{
		{name: "1342/", dir: true},
		{name: "1342/README.txt", body: "readme"},
		{name: "1342/hspire/level2/psw.fits", body: "psw data"},
		{name: "1342/hpacs/level2/blue.fits", body: "blue data"},
	}
	s.files["herschel"] = testFile{body: testTar(false, archive...)}

	scratch := filepath.Join(tmpdir, "scratch")
	newClient := func() (*Client, *testOpener) {
		opener := &testOpener{}
		config := DefaultConfig()
		config.URL = s.URL()
		config.HTTPClient = s.server.Client()
		config.Resolver = testResolver{}
		config.Opener = opener
		config.ScratchDir = scratch
		c, err := NewClient(config)
		So(err, ShouldBeNil)
		return c, opener
	}

	Convey("NewClient", t, func() {
		Convey("fills in the defaults", func() {
			c, err := NewClient(Config{})
			So(err, ShouldBeNil)
			config := c.Config()
			So(config.URL, ShouldEqual, DefaultURL)
			So(config.Timeout, ShouldEqual, DefaultTimeout)
			So(config.DownloadFolder, ShouldEqual, "Maps")
			So(config.ExcludedMissions, ShouldResemble, []string{"INTEGRAL"})
			So(config.Resolver, ShouldNotBeNil)
			So(config.Opener, ShouldResemble, &FITSOpener{})
		})

		Convey("keeps an explicitly empty exclusion list", func() {
			c, err := NewClient(Config{ExcludedMissions: []string{}})
			So(err, ShouldBeNil)
			So(len(c.Config().ExcludedMissions), ShouldEqual, 0)
		})

		Convey("rejects a negative rate limit", func() {
			_, err := NewClient(Config{RateLimit: -1})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Registry", t, func() {
		c, _ := newClient()

		Convey("lists maps and catalogs in the registry order", func() {
			names, err := c.ListMaps(ctx)
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"HST", "Herschel", "INTEGRAL", "DSS"})

			names, err = c.ListCatalogs(ctx)
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"Gaia DR2", "Hipparcos"})
		})

		Convey("decodes the descriptors", func() {
			ds, err := c.registry.Fetch(c.use(ctx), Catalogs)
			So(err, ShouldBeNil)
			d, err := ds.Find(Catalogs, "gaia dr2")
			So(err, ShouldBeNil)
			So(d, ShouldResemble, &CatalogDescriptor{
				MissionName: "Gaia DR2",
				Table:       "catalogues.mv_gaia_dr2_fdw",
				SourceLimit: 50000,
				OrderBy:     "phot_g_mean_mag",
				PosColumn:   "pos",
				Metadata: []MetadataColumn{
					{Label: "Name", TapName: "designation"},
					{Label: "RA", TapName: "ra"},
				},
			})
		})

		Convey("resolves names case-insensitively and tables exactly", func() {
			ds, err := c.registry.Fetch(c.use(ctx), Observations)
			So(err, ShouldBeNil)
			tapTable, err := ds.Resolve(Observations, "herschel")
			So(err, ShouldBeNil)
			So(tapTable, ShouldEqual, "observations.mv_herschel_fdw")

			_, err = ds.Resolve(Observations, "JWST")
			So(err, ShouldResemble, &UnknownMissionError{Kind: Observations, Name: "JWST"})

			d, err := ds.Lookup(Observations, "observations.mv_dss_fdw")
			So(err, ShouldBeNil)
			So(d.Mission(), ShouldEqual, "DSS")

			_, err = ds.Lookup(Observations, "OBSERVATIONS.MV_DSS_FDW")
			So(err, ShouldHaveSameTypeAs, &UnknownMissionError{})
		})

		Convey("fetches the document on every call", func() {
			before := s.Requests("/esasky-tap/observations")
			_, err := c.ListMaps(ctx)
			So(err, ShouldBeNil)
			_, err = c.ListMaps(ctx)
			So(err, ShouldBeNil)
			So(s.Requests("/esasky-tap/observations"), ShouldEqual, before+2)
		})

		Convey("rejects malformed documents", func() {
			defer func() {
				s.mu.Lock()
				s.observations = testObservations
				s.mu.Unlock()
			}()
			for _, doc := range []string{
				`{not json`,
				`{"catalogs": []}`,
				`{"observations": {"mission": "HST"}}`,
				`{"observations": [{"mission": "HST"}]}`,
				`{"observations": [{"tapTable": "t"}]}`,
				`{"observations": [{"mission": "A", "tapTable": "t"}, {"mission": "B", "tapTable": "t"}]}`,
			} {
				s.mu.Lock()
				s.observations = doc
				s.mu.Unlock()
				_, err := c.ListMaps(ctx)
				So(err, ShouldNotBeNil)
				rerr, ok := err.(*tap.RemoteFetchError)
				So(ok, ShouldBeTrue)
				So(rerr.URL, ShouldEqual, s.URL()+"/observations")
			}
		})

		Convey("rejects catalogs without a positive source limit", func() {
			defer func() {
				s.mu.Lock()
				s.catalogs = testCatalogs
				s.mu.Unlock()
			}()
			for _, doc := range []string{
				`{"catalogs": [{"mission": "Gaia", "tapTable": "t", "orderBy": "mag", "posTapColumn": "pos"}]}`,
				`{"catalogs": [{"mission": "Gaia", "tapTable": "t", "sourceLimit": 0, "orderBy": "mag", "posTapColumn": "pos"}]}`,
				`{"catalogs": [{"mission": "Gaia", "tapTable": "t", "sourceLimit": -5, "orderBy": "mag", "posTapColumn": "pos"}]}`,
			} {
				s.mu.Lock()
				s.catalogs = doc
				s.mu.Unlock()
				_, err := c.ListCatalogs(ctx)
				So(err, ShouldNotBeNil)
				rerr, ok := err.(*tap.RemoteFetchError)
				So(ok, ShouldBeTrue)
				So(rerr.URL, ShouldEqual, s.URL()+"/catalogs")
				So(err.Error(), ShouldContainSubstring, "sourceLimit")
			}
		})

		Convey("rejects an unknown kind", func() {
			_, err := c.ListNames(ctx, Kind("spectra"))
			So(err, ShouldHaveSameTypeAs, &InputValidationError{})
		})
	})

	Convey("Selector", t, func() {
		So(ParseSelector("all").IsAll(), ShouldBeTrue)
		So(ParseSelector(" ALL ").IsAll(), ShouldBeTrue)
		So(ParseSelector("HST, Herschel").Names(), ShouldResemble,
			[]string{"HST", "Herschel"})
		So(ParseSelector("HST").Names(), ShouldResemble, []string{"HST"})
		So(Missions("all").IsAll(), ShouldBeFalse)
		So(Missions().validate(), ShouldHaveSameTypeAs, &InputValidationError{})
		So(Missions("HST", "").validate(), ShouldHaveSameTypeAs, &InputValidationError{})
		So(All().String(), ShouldEqual, "all")
		So(Missions("HST", "XMM").String(), ShouldEqual, "HST,XMM")
	})

	Convey("Query", t, func() {
		c, _ := newClient()

		Convey("returns only missions with results, upper-cased", func() {
			res, err := c.QueryRegionMaps(ctx, "202.4695833 47.1952778", "14'", All())
			So(err, ShouldBeNil)
			So(res.Missions(), ShouldResemble, []string{"HERSCHEL", "HST", "INTEGRAL"})
			So(res["HST"].Len(), ShouldEqual, 2)
			ids, err := res["HST"].Column("observation_id")
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"hst1", "hst2"})
		})

		Convey("queries the selected missions only", func() {
			before := len(s.Queries())
			res, err := c.QueryRegionCatalogs(ctx, "M51", "1 arcmin",
				Missions("gaia dr2", "Hipparcos"))
			So(err, ShouldBeNil)
			So(res.Missions(), ShouldResemble, []string{"GAIA DR2"})
			queries := s.Queries()[before:]
			So(queries, ShouldResemble, []string{
				"SELECT TOP 50000 designation, ra FROM catalogues.mv_gaia_dr2_fdw " +
					"WHERE 1=CONTAINS(pos, CIRCLE('ICRS', 202.469583, 47.195278, 0.016667)) " +
					"ORDER BY phot_g_mean_mag;",
				"SELECT TOP 1000 hip FROM catalogues.mv_hipparcos_fdw " +
					"WHERE 1=CONTAINS(pos, CIRCLE('ICRS', 202.469583, 47.195278, 0.016667)) " +
					"ORDER BY vmag;",
			})
		})

		Convey("object queries use a zero radius", func() {
			before := len(s.Queries())
			res, err := c.QueryObjectMaps(ctx, "M51", Missions("DSS"))
			So(err, ShouldBeNil)
			So(len(res), ShouldEqual, 0)
			So(s.Queries()[before:], ShouldResemble, []string{
				"SELECT DISTINCT observation_id FROM observations.mv_dss_fdw " +
					"WHERE 1=CONTAINS(pos, CIRCLE('ICRS', 202.469583, 47.195278, 0.000000));",
			})

			res, err = c.QueryObjectCatalogs(ctx, "M51", Missions("Gaia DR2"))
			So(err, ShouldBeNil)
			So(res.Missions(), ShouldResemble, []string{"GAIA DR2"})
		})

		Convey("payload mode never calls the TAP endpoint", func() {
			before := s.Requests("/esasky-tap/tap/sync")
			res, err := c.QueryRegionPayload(ctx, Observations,
				"13h29m52.7s +47d11m43s", "0.5 deg", All())
			So(err, ShouldBeNil)
			So(res.Missions(), ShouldResemble,
				[]string{"DSS", "HERSCHEL", "HST", "INTEGRAL"})
			So(res["DSS"], ShouldResemble, tap.NewPayload(
				"SELECT DISTINCT observation_id FROM observations.mv_dss_fdw "+
					"WHERE 1=CONTAINS(pos, CIRCLE('ICRS', 202.469583, 47.195278, 0.500000));"))
			So(s.Requests("/esasky-tap/tap/sync"), ShouldEqual, before)

			again, err := c.QueryRegionPayload(ctx, Observations,
				"13h29m52.7s +47d11m43s", "0.5 deg", All())
			So(err, ShouldBeNil)
			So(again, ShouldResemble, res)
		})

		Convey("typed entry points skip parsing", func() {
			pos, err := coords.NewCoordinates(10, -5)
			So(err, ShouldBeNil)
			res, err := c.PayloadAt(ctx, Catalogs, pos, 2*coords.Degree, Missions("hipparcos"))
			So(err, ShouldBeNil)
			So(res["HIPPARCOS"].Query, ShouldEqual,
				"SELECT TOP 1000 hip FROM catalogues.mv_hipparcos_fdw "+
					"WHERE 1=CONTAINS(pos, CIRCLE('ICRS', 10.000000, -5.000000, 2.000000)) "+
					"ORDER BY vmag;")
			So(pos.RAHours(), ShouldAlmostEqual, 0.6667, 0.0001)
		})

		Convey("validates the inputs before any request", func() {
			before := s.Requests("/esasky-tap/observations")
			for _, args := range [][2]string{
				{"", "14'"},
				{"   ", "14'"},
				{"202.47 47.19", "14"},
				{"202.47 47.19", "-1 deg"},
				{"202.47 47.19", ""},
			} {
				_, err := c.QueryRegionMaps(ctx, args[0], args[1], All())
				So(err, ShouldHaveSameTypeAs, &InputValidationError{})
			}
			_, err := c.QueryRegionMaps(ctx, "M51", "14'", Missions())
			So(err, ShouldHaveSameTypeAs, &InputValidationError{})
			_, err = c.QueryRegion(ctx, Kind("spectra"), "M51", "14'", All())
			So(err, ShouldHaveSameTypeAs, &InputValidationError{})
			_, err = c.QueryAt(ctx, Observations, coords.Coordinates{}, -coords.Degree, All())
			So(err, ShouldHaveSameTypeAs, &InputValidationError{})
			So(s.Requests("/esasky-tap/observations"), ShouldEqual, before)
		})

		Convey("reports unknown missions", func() {
			_, err := c.QueryRegionMaps(ctx, "M51", "14'", Missions("HST", "JWST"))
			So(err, ShouldResemble, &UnknownMissionError{Kind: Observations, Name: "JWST"})
		})

		Convey("reports unparseable results with the response", func() {
			s.mu.Lock()
			s.tables["observations.mv_dss_fdw"] = &table.Table{
				Columns: []table.Column{{Name: "a"}},
				Rows:    []table.Row{{"1", "2"}},
			}
			s.mu.Unlock()
			defer func() {
				s.mu.Lock()
				delete(s.tables, "observations.mv_dss_fdw")
				s.mu.Unlock()
			}()
			_, err := c.QueryObjectMaps(ctx, "M51", Missions("DSS"))
			So(err, ShouldHaveSameTypeAs, &tap.TableParseError{})
			So(err.(*tap.TableParseError).Response, ShouldNotBeNil)
		})
	})

	Convey("Downloads", t, func() {
		c, opener := newClient()
		So(os.MkdirAll(scratch, 0755), ShouldBeNil)
		folder := filepath.Join(tmpdir, "maps")

		result, err := c.QueryRegionMaps(ctx, "M51", "14'", All())
		So(err, ShouldBeNil)

		Convey("single file products", func() {
			res, err := c.GetMaps(ctx, result, Missions("hst"), folder)
			So(err, ShouldBeNil)
			defer res.Close()
			So(res.Missions(), ShouldResemble, []string{"HST"})
			hst := res["HST"]
			So(len(hst), ShouldEqual, 2)
			So(hst["hst1"].Product.Path(), ShouldEqual,
				filepath.Join(folder, "HST", "hst1.fits"))
			So(hst["hst2"].Product.Path(), ShouldEqual,
				filepath.Join(folder, "HST", "hst2.FTZ"))
			So(readFile(hst["hst1"].Product.Path()), ShouldEqual, "hst1 data")
			So(readFile(hst["hst2"].Product.Path()), ShouldEqual, "hst2 data")
			So(len(opener.opened), ShouldEqual, 2)
		})

		Convey("multi-filter archives", func() {
			check := func() {
				res, err := c.GetMaps(ctx, result, Missions("Herschel"), folder)
				So(err, ShouldBeNil)
				obs := res["HERSCHEL"]["1342"]
				So(obs.Product, ShouldBeNil)
				So(len(obs.Filters), ShouldEqual, 2)
				dir := filepath.Join(folder, "HERSCHEL")
				So(obs.Filters["250"].Path(), ShouldEqual,
					filepath.Join(dir, "hspire", "level2", "psw.fits"))
				So(obs.Filters["350"].Path(), ShouldEqual,
					filepath.Join(dir, "hpacs", "level2", "blue.fits"))
				So(readFile(obs.Filters["250"].Path()), ShouldEqual, "psw data")
				So(readFile(obs.Filters["350"].Path()), ShouldEqual, "blue data")
				_, err = os.Stat(filepath.Join(dir, "README.txt"))
				So(os.IsNotExist(err), ShouldBeTrue)

				So(res.Close(), ShouldBeNil)
				for _, p := range opener.opened {
					So(p.closed, ShouldBeTrue)
				}
				scratchFiles, err := os.ReadDir(scratch)
				So(err, ShouldBeNil)
				So(len(scratchFiles), ShouldEqual, 0)
			}

			Convey("plain tar", func() {
				check()
			})

			Convey("gzip tar", func() {
				s.mu.Lock()
				s.files["herschel"] = testFile{body: testTar(true, archive...)}
				s.mu.Unlock()
				defer func() {
					s.mu.Lock()
					s.files["herschel"] = testFile{body: testTar(false, archive...)}
					s.mu.Unlock()
				}()
				check()
			})
		})

		Convey("filter count mismatch", func() {
			t := &table.Table{
				Columns: result["HERSCHEL"].Columns,
				Rows:    []table.Row{{"1342", s.FileURL("herschel?id=1342"), "250"}},
			}
			_, err := c.GetMaps(ctx, QueryResult{"HERSCHEL": t}, All(), folder)
			So(err, ShouldHaveSameTypeAs, &FilterMismatchError{})
			ferr := err.(*FilterMismatchError)
			So(ferr.Filters, ShouldResemble, []string{"250"})
			So(len(ferr.Members), ShouldEqual, 2)
			scratchFiles, err := os.ReadDir(scratch)
			So(err, ShouldBeNil)
			So(len(scratchFiles), ShouldEqual, 0)
		})

		Convey("excluded missions are skipped", func() {
			res, err := c.GetMaps(ctx, result, Missions("INTEGRAL"), folder)
			So(err, ShouldBeNil)
			So(len(res), ShouldEqual, 0)
			So(s.Requests("/products/int1.fits"), ShouldEqual, 0)
		})

		Convey("missions without product URLs are skipped", func() {
			t := &table.Table{
				Columns: []table.Column{{Name: "observation_id"}},
				Rows:    []table.Row{{"dss1"}},
			}
			res, err := c.GetMaps(ctx, QueryResult{"DSS": t}, All(), folder)
			So(err, ShouldBeNil)
			So(res.Missions(), ShouldResemble, []string{"DSS"})
			So(len(res["DSS"]), ShouldEqual, 0)
		})

		Convey("all selects the whole registry", func() {
			res, err := c.GetImages(ctx, "M51", "14'", All(), folder)
			So(err, ShouldBeNil)
			So(res.Missions(), ShouldResemble, []string{"HERSCHEL", "HST"})
			So(res.Close(), ShouldBeNil)
		})

		Convey("default folder", func() {
			So(c.Config().DownloadFolder, ShouldEqual, "Maps")
			config := c.Config()
			config.DownloadFolder = filepath.Join(tmpdir, "default")
			c2, err := NewClient(config)
			So(err, ShouldBeNil)
			res, err := c2.GetMaps(ctx, result, Missions("HST"), "")
			So(err, ShouldBeNil)
			So(res["HST"]["hst1"].Product.Path(), ShouldEqual,
				filepath.Join(tmpdir, "default", "HST", "hst1.fits"))
			So(res.Close(), ShouldBeNil)
		})

		Convey("nil result is rejected", func() {
			_, err := c.GetMaps(ctx, nil, All(), folder)
			So(err, ShouldHaveSameTypeAs, &InputValidationError{})
		})

		Convey("download failures abort the batch", func() {
			t := &table.Table{
				Columns: []table.Column{{Name: "observation_id"}, {Name: "product_url"}},
				Rows: []table.Row{
					{"hst1", s.FileURL("hst1.fits")},
					{"missing", s.FileURL("missing.fits")},
				},
			}
			_, err := c.GetMaps(ctx, QueryResult{"HST": t}, All(), folder)
			So(err, ShouldHaveSameTypeAs, &tap.RemoteFetchError{})
			So(len(opener.opened), ShouldEqual, 1)
			So(opener.opened[0].closed, ShouldBeTrue)
		})

		Convey("missing file name in the header", func() {
			s.mu.Lock()
			s.files["noname"] = testFile{body: []byte("x"), disposition: "attachment"}
			s.mu.Unlock()
			t := &table.Table{
				Columns: []table.Column{{Name: "observation_id"}, {Name: "product_url"}},
				Rows:    []table.Row{{"x", s.FileURL("noname")}},
			}
			_, err := c.GetMaps(ctx, QueryResult{"HST": t}, All(), folder)
			So(err, ShouldResemble, &HeaderParseError{Header: "attachment"})
		})
	})
}
