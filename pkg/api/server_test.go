package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"apk_release/pkg/models"
	"apk_release/pkg/release"
	"apk_release/pkg/shell"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBridge struct {
	devices []string
	listErr error
	failOn  map[string]error
	calls   []string
}

func (b *fakeBridge) Devices() ([]string, error) { return b.devices, b.listErr }

func (b *fakeBridge) Push(deviceID, local, remote string) error {
	b.calls = append(b.calls, "push:"+deviceID)
	return b.failOn["push:"+deviceID]
}

func (b *fakeBridge) Install(deviceID, local string) error {
	b.calls = append(b.calls, "install:"+deviceID)
	return b.failOn["install:"+deviceID]
}

type noBump struct{}

func (noBump) BumpPatch() error { return errors.New("bump must not run from the API") }

func newTestServer(t *testing.T, bridge *fakeBridge, allow string) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "package.json")
	if err := os.WriteFile(path, []byte(`{"appName":"FieldApp","version":"3.1.0"}`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	opts := release.Options{
		Publish:      true,
		AllowList:    release.ResolveAllowList(allow),
		ManifestPath: path,
		APKPath:      "app-release.apk",
		RemoteDir:    "/storage/emulated/0/Downloads",
	}
	return NewServer(release.NewInstaller(bridge, noBump{}, nil, nil), opts)
}

func do(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not JSON: %v (%s)", err, w.Body.String())
	}
	return w, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeBridge{}, "")
	w, out := do(t, s, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if string(out["status"]) != `"ok"` {
		t.Errorf("status field = %s", out["status"])
	}
}

func TestListDevicesFiltered(t *testing.T) {
	s := newTestServer(t, &fakeBridge{devices: []string{"A", "B", "C"}}, "C,A")
	w, out := do(t, s, http.MethodGet, "/api/v1/devices", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var devices []string
	if err := json.Unmarshal(out["devices"], &devices); err != nil {
		t.Fatalf("devices: %v", err)
	}
	if !reflect.DeepEqual(devices, []string{"A", "C"}) {
		t.Errorf("devices = %q", devices)
	}
}

func TestListDevicesError(t *testing.T) {
	bridge := &fakeBridge{listErr: &shell.CommandError{ExitCode: 127, Err: errors.New("adb not found")}}
	w, out := do(t, newTestServer(t, bridge, ""), http.MethodGet, "/api/v1/devices", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	if string(out["exit_code"]) != "127" {
		t.Errorf("exit_code = %s", out["exit_code"])
	}
}

func TestGetArtifact(t *testing.T) {
	w, out := do(t, newTestServer(t, &fakeBridge{}, ""), http.MethodGet, "/api/v1/artifact", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var artifact models.Artifact
	if err := json.Unmarshal(out["artifact"], &artifact); err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if artifact.Name != "FieldApp" || artifact.Version != "3.1.0" || artifact.Timestamp == 0 {
		t.Errorf("artifact = %+v", artifact)
	}
}

func TestInstall(t *testing.T) {
	bridge := &fakeBridge{devices: []string{"A", "B", "C"}}
	s := newTestServer(t, bridge, "")

	w, out := do(t, s, http.MethodPost, "/api/v1/install", InstallRequest{Install: true, Devices: []string{"B", " C "}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !reflect.DeepEqual(bridge.calls, []string{"install:B", "install:C"}) {
		t.Errorf("calls = %q", bridge.calls)
	}

	var report models.RunReport
	if err := json.Unmarshal(out["report"], &report); err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(report.Results) != 2 || report.Artifact.Version != "3.1.0" {
		t.Errorf("report = %+v", report)
	}
}

func TestInstallFailure(t *testing.T) {
	bridge := &fakeBridge{
		devices: []string{"A", "B"},
		failOn:  map[string]error{"push:A": &shell.CommandError{ExitCode: 2, Err: errors.New("remote write failed")}},
	}
	w, out := do(t, newTestServer(t, bridge, ""), http.MethodPost, "/api/v1/install", InstallRequest{Push: true})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	if string(out["exit_code"]) != "2" {
		t.Errorf("exit_code = %s", out["exit_code"])
	}
	if len(bridge.calls) != 1 {
		t.Errorf("fail-fast expected, calls = %q", bridge.calls)
	}
}

func TestInstallBadRequest(t *testing.T) {
	s := newTestServer(t, &fakeBridge{}, "")
	if w, _ := do(t, s, http.MethodPost, "/api/v1/install", InstallRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty modes: status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/install", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d", w.Code)
	}
}
