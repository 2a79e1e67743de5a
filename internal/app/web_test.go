package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/relabs-tech/xsens_computer/internal/imu"
	"github.com/relabs-tech/xsens_computer/internal/orientation"
)

func headingPayload(t *testing.T, yaw float64) []byte {
	t.Helper()
	payload, err := json.Marshal(imu.Heading{Pose: orientation.Pose{Yaw: yaw}, Range: "360"})
	test.That(t, err, test.ShouldBeNil)
	return payload
}

func TestWebLatestHeading(t *testing.T) {
	s := NewWebServer(&fakePublisher{}, "xsens/command", zaptest.NewLogger(t).Sugar())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/heading")
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusServiceUnavailable)

	test.That(t, s.OnHeading(headingPayload(t, 42)), test.ShouldBeNil)
	test.That(t, s.OnHeading([]byte("{")), test.ShouldNotBeNil)

	resp, err = http.Get(srv.URL + "/api/heading")
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	var h imu.Heading
	test.That(t, json.NewDecoder(resp.Body).Decode(&h), test.ShouldBeNil)
	test.That(t, h.Yaw, test.ShouldEqual, 42.0)
}

func TestWebSample(t *testing.T) {
	s := NewWebServer(&fakePublisher{}, "xsens/command", zaptest.NewLogger(t).Sugar())
	test.That(t, s.OnSample([]byte(`{"fields":[]}`)), test.ShouldBeNil)
	test.That(t, s.OnSample([]byte(`nope`)), test.ShouldNotBeNil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sample", nil))
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, rec.Body.String(), test.ShouldEqual, `{"fields":[]}`)
}

func TestWebCommandForwarding(t *testing.T) {
	pub := &fakePublisher{}
	s := NewWebServer(pub, "xsens/command", zaptest.NewLogger(t).Sugar())
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/command",
		strings.NewReader(`{"type":"reset","yaw":0}`)))
	test.That(t, rec.Code, test.ShouldEqual, http.StatusAccepted)
	test.That(t, string(pub.last("xsens/command")), test.ShouldEqual, `{"type":"reset","yaw":0}`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"type":"x"}`)))
	test.That(t, rec.Code, test.ShouldEqual, http.StatusBadRequest)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/command", nil))
	test.That(t, rec.Code, test.ShouldEqual, http.StatusMethodNotAllowed)
}

func TestWebSocketStream(t *testing.T) {
	s := NewWebServer(&fakePublisher{}, "xsens/command", zaptest.NewLogger(t).Sugar())
	test.That(t, s.OnHeading(headingPayload(t, 1)), test.ShouldBeNil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	test.That(t, err, test.ShouldBeNil)
	defer conn.Close()
	if resp != nil && resp.Body != nil {
		io.Copy(io.Discard, resp.Body)
	}
	test.That(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)), test.ShouldBeNil)

	var h imu.Heading
	test.That(t, conn.ReadJSON(&h), test.ShouldBeNil)
	test.That(t, h.Yaw, test.ShouldEqual, 1.0)

	test.That(t, s.OnHeading(headingPayload(t, 2)), test.ShouldBeNil)
	test.That(t, conn.ReadJSON(&h), test.ShouldBeNil)
	test.That(t, h.Yaw, test.ShouldEqual, 2.0)
}
