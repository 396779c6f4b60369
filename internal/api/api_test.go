package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sprite-ai/revq/internal/diff"
	"github.com/sprite-ai/revq/internal/engine"
)

const testDiff = `diff --git a/main.go b/main.go
index abc1234..def5678 100644
--- a/main.go
+++ b/main.go
@@ -1,5 +1,6 @@
 package main

 func main() {
-	println("hello")
+	println("hello world")
+	println("goodbye")
 }
diff --git a/util.go b/util.go
new file mode 100644
--- /dev/null
+++ b/util.go
@@ -0,0 +1,5 @@
+package main
+
+func add(a, b int) int {
+	return a + b
+}
`

func newTestServer(t *testing.T) (*Server, *engine.Session) {
	t.Helper()
	ds, err := diff.Ingest(testDiff)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	s, err := engine.Open(context.Background(), "api-test", ds, engine.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return New(":0", s, nil), s
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %q", resp["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, sess := newTestServer(t)

	if _, err := sess.Skim(context.Background(), engine.ParseSelector("util.go")); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}

	if resp.Total != 7 || resp.Remaining != 2 {
		t.Errorf("status = %+v, want total 7 remaining 2", resp)
	}
	if resp.Skimmed != 5 || resp.FilesTouched != 2 {
		t.Errorf("status = %+v", resp)
	}
}

func TestOverviewEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/overview", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp overviewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if len(resp.Files) != 2 {
		t.Fatalf("files = %+v", resp.Files)
	}
	if resp.Files[0].Path != "main.go" || resp.Files[0].Lines != 2 {
		t.Errorf("first file = %+v", resp.Files[0])
	}
}

func TestGroupsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/groups?scheme=file-type", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp groupsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if resp.Scheme != "file-type" || len(resp.Groups) == 0 {
		t.Errorf("groups = %+v", resp)
	}
}

func TestGroupsUnknownScheme(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/groups?scheme=nope", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestWebSocketPushesOnMutation(t *testing.T) {
	srv, sess := newTestServer(t)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readStatus := func() statusResponse {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg wsStatusMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != "status" {
			t.Fatalf("message type = %q", msg.Type)
		}
		return msg.Data
	}

	if got := readStatus(); got.Remaining != 7 {
		t.Errorf("initial snapshot remaining = %d, want 7", got.Remaining)
	}

	if _, err := sess.Skim(context.Background(), engine.ParseSelector("util.go")); err != nil {
		t.Fatal(err)
	}

	if got := readStatus(); got.Remaining != 2 {
		t.Errorf("pushed snapshot remaining = %d, want 2", got.Remaining)
	}
}
