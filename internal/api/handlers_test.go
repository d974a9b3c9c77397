package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"collab-docs/internal/services/collaboration"
)

type fakeSnapshotService struct {
	queued int
}

func (f *fakeSnapshotService) QueueLength() int { return f.queued }

func setupRouter() (http.Handler, *collaboration.SessionManager) {
	sm := collaboration.NewSessionManager()
	wsHandler := collaboration.NewWebSocketHandler(sm)
	handler := NewHandler(nil, &fakeSnapshotService{queued: 7}, wsHandler, sm)
	return SetupRoutes(handler), sm
}

func TestHealthReportsQueueDepth(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected ok status, got %v", body["status"])
	}
	if body["snapshot_queue"] != float64(7) {
		t.Fatalf("expected queue depth 7, got %v", body["snapshot_queue"])
	}
}

func TestGetCollaboratorsEmptyRoster(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/collaborators", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		DocumentID    string        `json:"documentId"`
		Collaborators []interface{} `json:"collaborators"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.DocumentID != "doc-1" {
		t.Fatalf("expected doc-1, got %s", body.DocumentID)
	}
	if len(body.Collaborators) != 0 {
		t.Fatalf("expected empty roster, got %v", body.Collaborators)
	}
}
