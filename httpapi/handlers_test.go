package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/webkin/webkin/calibration"
	"github.com/webkin/webkin/coordinator"
	"github.com/webkin/webkin/kinematictree"
	"github.com/webkin/webkin/logging"
	spatial "github.com/webkin/webkin/spatialmath"
)

func newTestServer(t *testing.T) *Server {
	store := calibration.New(filepath.Join(t.TempDir(), "axis_overrides.json"), logging.NewTestLogger(t))
	coord := coordinator.New(store, false, logging.NewTestLogger(t))

	axis := spatial.Vec3JSON{Z: 1}
	doc := &kinematictree.NodeDoc{Name: "J", Type: kinematictree.Rotator, Axis: &axis}
	test.That(t, coord.LoadTree(doc), test.ShouldBeNil)

	return New(coord, logging.NewTestLogger(t))
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestGetTreeReturnsLoadedDoc(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/tree", nil)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)

	var doc kinematictree.NodeDoc
	test.That(t, json.Unmarshal(rec.Body.Bytes(), &doc), test.ShouldBeNil)
	test.That(t, doc.Name, test.ShouldEqual, "J")
}

func TestPostJointsAppliesAndReturns200(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/joints", map[string]float64{"J": 1})
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)

	sceneRec := doRequest(s, http.MethodGet, "/api/scene", nil)
	test.That(t, sceneRec.Code, test.ShouldEqual, http.StatusOK)
}

func TestSetZeroMissingJointNameReturns400(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/offset/set_zero", map[string]string{})
	test.That(t, rec.Code, test.ShouldEqual, http.StatusBadRequest)
}

func TestSetZeroUnknownJointReturns404(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/offset/set_zero", map[string]string{"joint_name": "ghost"})
	test.That(t, rec.Code, test.ShouldEqual, http.StatusNotFound)
}

// set_zero then overrides reflects axis_offset.
func TestSetZeroThenOverridesShowsOffset(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/joints", map[string]float64{"J": 1.5708})
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)

	rec = doRequest(s, http.MethodPost, "/api/offset/set_zero", map[string]string{"joint_name": "J"})
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)

	rec = doRequest(s, http.MethodGet, "/api/axis/overrides", nil)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)

	var parsed struct {
		Overrides map[string]calibration.Override `json:"overrides"`
	}
	test.That(t, json.Unmarshal(rec.Body.Bytes(), &parsed), test.ShouldBeNil)
	test.That(t, *parsed.Overrides["J"].AxisOffset, test.ShouldAlmostEqual, -1.5708)
}

func TestDeleteOneOverrideRestoresDeclaredValue(t *testing.T) {
	s := newTestServer(t)
	doRequest(s, http.MethodPost, "/api/offset/set_zero", map[string]string{"joint_name": "J"})

	rec := doRequest(s, http.MethodDelete, "/api/axis/overrides/J", nil)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)

	rec = doRequest(s, http.MethodGet, "/api/axis/overrides", nil)
	var parsed struct {
		Overrides map[string]calibration.Override `json:"overrides"`
	}
	test.That(t, json.Unmarshal(rec.Body.Bytes(), &parsed), test.ShouldBeNil)
	_, stillHeld := parsed.Overrides["J"]
	test.That(t, stillHeld, test.ShouldBeFalse)
}

func TestDeleteAllOverrides(t *testing.T) {
	s := newTestServer(t)
	doRequest(s, http.MethodPost, "/api/offset/set_zero", map[string]string{"joint_name": "J"})

	rec := doRequest(s, http.MethodDelete, "/api/axis/overrides", nil)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)

	rec = doRequest(s, http.MethodGet, "/api/axis/overrides", nil)
	var parsed struct {
		Overrides map[string]calibration.Override `json:"overrides"`
	}
	test.That(t, json.Unmarshal(rec.Body.Bytes(), &parsed), test.ShouldBeNil)
	test.That(t, len(parsed.Overrides), test.ShouldEqual, 0)
}

func TestPostTreeMalformedReturns400(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/tree", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	test.That(t, rec.Code, test.ShouldEqual, http.StatusBadRequest)
}
