package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gamevault/gamevault/internal/coordinator"
	"github.com/gamevault/gamevault/internal/storage"
	"github.com/gamevault/gamevault/internal/syncsvc"
	"github.com/gamevault/gamevault/internal/testutil"
	"github.com/gamevault/gamevault/internal/types"
)

// clusterAdmin adapts the test cluster to the broker's admin surface.
type clusterAdmin struct{ c *testutil.Cluster }

func (a clusterAdmin) Crash(node string) error {
	if !types.IsValidNode(node) {
		return fmt.Errorf("unknown node %q", node)
	}
	a.c.Crash(node)
	return nil
}

func (a clusterAdmin) Restore(ctx context.Context, node string) error {
	if !types.IsValidNode(node) {
		return fmt.Errorf("unknown node %q", node)
	}
	a.c.Restore(node)
	return nil
}

type fixture struct {
	cluster *testutil.Cluster
	sync    *syncsvc.Service
	ts      *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cluster := testutil.NewCluster(t)
	coord := coordinator.New(cluster, cluster.Registry)
	sync := syncsvc.New(cluster, cluster.Registry, time.Second)
	s := New(":0", coord, sync, cluster, cluster.Registry, clusterAdmin{cluster})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &fixture{cluster: cluster, sync: sync, ts: ts}
}

func (f *fixture) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	resp, err := http.Post(f.ts.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return m
}

func gameBody(windows, mac, linux bool) map[string]any {
	return map[string]any{
		"name":         "Test Game",
		"release_date": "2024-06-01T00:00:00",
		"required_age": 0,
		"price":        19.99,
		"about_game":   "integration test record",
		"windows":      windows,
		"mac":          mac,
		"linux":        linux,
		"developers":   []string{"Dev"},
		"publishers":   []string{"Pub"},
		"genres":       []string{"Action"},
	}
}

func TestCreateGameRoutesToPartition(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, "/api/games", gameBody(true, false, false))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["message"] != "Game created successfully" {
		t.Errorf("message = %v", body["message"])
	}
	data := body["data"].(map[string]any)
	if data["AppID"].(float64) != 1 || data["Name"] != "Test Game" {
		t.Errorf("data = %v", data)
	}

	ok, err := storage.GameExists(context.Background(), f.cluster.DBs[types.NodeSlaveA], 1)
	if err != nil || !ok {
		t.Errorf("game on slave_a = %v, %v", ok, err)
	}
}

func TestCreateGameValidation(t *testing.T) {
	f := newFixture(t)

	body := gameBody(true, false, false)
	delete(body, "name")
	resp, got := f.post(t, "/api/games", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got["error"] != "Validation failed" {
		t.Errorf("error = %v", got["error"])
	}
	if details := got["details"].([]any); len(details) == 0 {
		t.Error("details should name the missing field")
	}
}

func TestCreateGameMalformedJSON(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.ts.URL+"/api/games", "application/json", bytes.NewBufferString("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateGameMasterDown(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, "/api/nodes/crash/master", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("crash status = %d, body = %v", resp.StatusCode, body)
	}

	resp, body = f.post(t, "/api/games", gameBody(true, false, false))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if body["error"] != "Master node is down. No writes allowed." {
		t.Errorf("error = %v", body["error"])
	}
}

func TestCrashInvalidNode(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, "/api/nodes/crash/slave_c", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["error"] != "Invalid node specified" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestHealthReflectsCrashes(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/api/nodes/crash/slave_b", nil)

	resp, body := f.get(t, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	master := body["master"].(map[string]any)
	slaveB := body["slave_b"].(map[string]any)
	if master["status"] != "up" || master["connection"] != true {
		t.Errorf("master = %v", master)
	}
	if slaveB["status"] != "down" || slaveB["connection"] != false {
		t.Errorf("slave_b = %v", slaveB)
	}
}

// Full outage round-trip: crash a slave, write through the API, watch the
// backlog, restore, drain, watch it clear.
func TestPendingBacklogLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.post(t, "/api/nodes/crash/slave_a", nil)

	resp, _ := f.post(t, "/api/games", gameBody(true, false, false))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create during outage = %d", resp.StatusCode)
	}

	_, body := f.get(t, "/api/pending")
	if body["pending_windows_games"].(float64) != 1 {
		t.Fatalf("pending = %v", body)
	}

	f.post(t, "/api/nodes/restore/slave_a", nil)
	if err := f.sync.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}

	_, body = f.get(t, "/api/pending")
	if body["pending_windows_games"].(float64) != 0 {
		t.Errorf("pending after drain = %v", body)
	}
	ok, err := storage.GameExists(ctx, f.cluster.DBs[types.NodeSlaveA], 1)
	if err != nil || !ok {
		t.Errorf("game on restored slave = %v, %v", ok, err)
	}
}

func TestSampleGameRoute(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, "/api/games/sample", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]any)
	if data["Name"] != "Sample Game" {
		t.Errorf("data = %v", data)
	}
	ok, err := storage.GameExists(context.Background(), f.cluster.DBs[types.NodeSlaveA], 1)
	if err != nil || !ok {
		t.Errorf("sample game on slave_a = %v, %v", ok, err)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/api/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["error"] != "Route not found" {
		t.Errorf("error = %v", body["error"])
	}
}
