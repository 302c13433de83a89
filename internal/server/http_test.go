package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"github.com/logbook-io/logbook/internal/storage"
	"github.com/logbook-io/logbook/internal/store"
)

func newTestHandler(t *testing.T) (http.Handler, string) {
	t.Helper()
	codec, err := storage.NewCodec(nil)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "logs.snapshot")
	st := store.New(path, codec)
	return NewServer(st, nil).Router(), path
}

const validBody = `{
	"level": "error",
	"message": "Failed to connect to DB",
	"resourceId": "server-1234",
	"timestamp": "2023-09-15T08:00:00Z",
	"traceId": "abc-xyz-123",
	"spanId": "span-456",
	"commit": "5e5342f",
	"metadata": {"parentResourceId": "server-0987"}
}`

func doRequest(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, w.Body.String())
	}
	return body
}

func TestIngestSuccess(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(h, http.MethodPost, "/logs", validBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["status"] != "success" {
		t.Errorf("expected success status, got %v", body["status"])
	}
	if body["message"] != "Log successfully created and stored." {
		t.Errorf("unexpected message: %v", body["message"])
	}
	data := body["data"].(map[string]any)
	if data["id"] != float64(1) {
		t.Errorf("expected assigned id 1, got %v", data["id"])
	}
	if data["level"] != "error" || data["resourceId"] != "server-1234" {
		t.Errorf("stored record does not echo the input: %v", data)
	}
}

func TestIngestMissingFieldFailsFastAndStoreUnchanged(t *testing.T) {
	h, _ := newTestHandler(t)

	var body map[string]any
	if err := json.Unmarshal([]byte(validBody), &body); err != nil {
		t.Fatal(err)
	}
	delete(body, "spanId")
	raw, _ := json.Marshal(body)

	w := doRequest(h, http.MethodPost, "/logs", string(raw))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["status"] != "error" || resp["message"] != "spanId is required." {
		t.Fatalf("unexpected error envelope: %v", resp)
	}

	// The rejected record must not have been persisted.
	get := doRequest(h, http.MethodGet, "/logs", "")
	result := decodeBody(t, get)
	if result["total"] != float64(0) {
		t.Errorf("store changed by a rejected ingest: total=%v", result["total"])
	}
}

func TestIngestReportsFirstMissingFieldInDeclaredOrder(t *testing.T) {
	h, _ := newTestHandler(t)

	// Both level and spanId absent: level comes first in the declared
	// order.
	w := doRequest(h, http.MethodPost, "/logs", `{"message":"x","resourceId":"r","timestamp":"2023-09-15T08:00:00Z","traceId":"t","commit":"c","metadata":{}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := decodeBody(t, w)["message"]; msg != "level is required." {
		t.Fatalf("expected first missing field reported, got %v", msg)
	}
}

func TestIngestRejectsUnknownLevel(t *testing.T) {
	h, _ := newTestHandler(t)

	body := strings.Replace(validBody, `"error"`, `"critical"`, 1)
	w := doRequest(h, http.MethodPost, "/logs", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown level, got %d", w.Code)
	}
	if msg := decodeBody(t, w)["message"]; !strings.Contains(msg.(string), "level must be one of") {
		t.Fatalf("unexpected message: %v", msg)
	}
}

func TestIngestRejectsBadTimestamp(t *testing.T) {
	h, _ := newTestHandler(t)

	body := strings.Replace(validBody, "2023-09-15T08:00:00Z", "yesterday", 1)
	w := doRequest(h, http.MethodPost, "/logs", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timestamp, got %d", w.Code)
	}
}

func TestIngestRejectsInvalidJSON(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doRequest(h, http.MethodPost, "/logs", `{"level":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", w.Code)
	}
}

func TestIngestAssignsSequentialIDs(t *testing.T) {
	h, _ := newTestHandler(t)

	for want := 1; want <= 2; want++ {
		w := doRequest(h, http.MethodPost, "/logs", validBody)
		if w.Code != http.StatusCreated {
			t.Fatalf("ingest %d failed: %d", want, w.Code)
		}
		data := decodeBody(t, w)["data"].(map[string]any)
		if data["id"] != float64(want) {
			t.Fatalf("expected id %d, got %v", want, data["id"])
		}
	}
}

func TestIngestRateLimited(t *testing.T) {
	codec, err := storage.NewCodec(nil)
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(filepath.Join(t.TempDir(), "logs.snapshot"), codec)
	h := NewServer(st, rate.NewLimiter(rate.Limit(0), 0)).Router()

	w := doRequest(h, http.MethodPost, "/logs", validBody)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if resp := decodeBody(t, w); resp["status"] != "error" {
		t.Errorf("expected error envelope, got %v", resp)
	}
}

func TestQueryRoundTripByTraceID(t *testing.T) {
	h, _ := newTestHandler(t)

	post := doRequest(h, http.MethodPost, "/logs", validBody)
	posted := decodeBody(t, post)["data"].(map[string]any)

	get := doRequest(h, http.MethodGet, "/logs?traceId=abc-xyz-123", "")
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.Code)
	}
	result := decodeBody(t, get)
	records := result["data"].([]any)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	got := records[0].(map[string]any)
	for _, field := range []string{"id", "level", "message", "resourceId", "timestamp", "traceId", "spanId", "commit"} {
		if fmt.Sprint(got[field]) != fmt.Sprint(posted[field]) {
			t.Errorf("field %s mismatch: posted %v, got %v", field, posted[field], got[field])
		}
	}
}

func TestQueryFiltersCombineWithAND(t *testing.T) {
	h, _ := newTestHandler(t)

	doRequest(h, http.MethodPost, "/logs", validBody)
	other := strings.Replace(validBody, "Failed to connect to DB", "startup complete", 1)
	other = strings.Replace(other, `"error"`, `"info"`, 1)
	doRequest(h, http.MethodPost, "/logs", other)

	get := doRequest(h, http.MethodGet, "/logs?level=error&message=CONNECT", "")
	result := decodeBody(t, get)
	if result["total"] != float64(1) {
		t.Fatalf("expected 1 match, got %v", result["total"])
	}
	rec := result["data"].([]any)[0].(map[string]any)
	if rec["level"] != "error" {
		t.Errorf("AND semantics violated: %v", rec)
	}
}

func TestQueryDateRange(t *testing.T) {
	h, _ := newTestHandler(t)

	in := strings.Replace(validBody, "2023-09-15T08:00:00Z", "2024-01-15T00:00:00Z", 1)
	out := strings.Replace(validBody, "2023-09-15T08:00:00Z", "2024-02-01T00:00:00Z", 1)
	doRequest(h, http.MethodPost, "/logs", in)
	doRequest(h, http.MethodPost, "/logs", out)

	get := doRequest(h, http.MethodGet, "/logs?dateRange[from]=2024-01-01&dateRange[to]=2024-01-31", "")
	result := decodeBody(t, get)
	if result["total"] != float64(1) {
		t.Fatalf("expected only the in-range record, got total=%v", result["total"])
	}
	rec := result["data"].([]any)[0].(map[string]any)
	if !strings.HasPrefix(rec["timestamp"].(string), "2024-01-15") {
		t.Errorf("wrong record in range: %v", rec["timestamp"])
	}
}

func TestQueryRejectsMalformedDate(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, target := range []string{
		"/logs?dateRange[from]=notadate",
		"/logs?dateRange[to]=13/01/2024",
		"/logs?timestamp=lastweek",
	} {
		w := doRequest(h, http.MethodGet, target, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestQueryDefaultsPageAndLimit(t *testing.T) {
	h, _ := newTestHandler(t)

	get := doRequest(h, http.MethodGet, "/logs?page=abc&limit=xyz", "")
	if get.Code != http.StatusOK {
		t.Fatalf("non-numeric paging must fall back to defaults, got %d", get.Code)
	}
	result := decodeBody(t, get)
	if result["page"] != float64(1) || result["limit"] != float64(50) {
		t.Errorf("expected defaults 1/50, got %v/%v", result["page"], result["limit"])
	}
}

func TestQueryPaginationEnvelope(t *testing.T) {
	h, _ := newTestHandler(t)

	for i := 0; i < 5; i++ {
		ts := fmt.Sprintf("2023-09-15T08:0%d:00Z", i)
		doRequest(h, http.MethodPost, "/logs", strings.Replace(validBody, "2023-09-15T08:00:00Z", ts, 1))
	}

	get := doRequest(h, http.MethodGet, "/logs?page=2&limit=2", "")
	result := decodeBody(t, get)
	if result["total"] != float64(5) || result["totalPages"] != float64(3) {
		t.Fatalf("unexpected envelope: %v", result)
	}
	if len(result["data"].([]any)) != 2 {
		t.Errorf("expected 2 records on page 2")
	}

	empty := decodeBody(t, doRequest(h, http.MethodGet, "/logs?page=9&limit=2", ""))
	if len(empty["data"].([]any)) != 0 || empty["total"] != float64(5) {
		t.Errorf("out-of-range page must be empty with the real total: %v", empty)
	}
}

func TestQueryUnavailableStoreIs500(t *testing.T) {
	h, path := newTestHandler(t)

	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	w := doRequest(h, http.MethodGet, "/logs", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unreadable store, got %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["status"] != "error" || resp["message"] != "Internal server error" {
		t.Errorf("unexpected envelope: %v", resp)
	}
	if resp["error"] == nil {
		t.Error("500 envelope must carry error detail")
	}
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doRequest(h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)
	w := doRequest(h, http.MethodDelete, "/logs", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
