package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/notekit/notekit/internal/cache"
	"github.com/notekit/notekit/internal/config"
	"github.com/notekit/notekit/internal/logger"
	"github.com/notekit/notekit/internal/models"
	"github.com/notekit/notekit/internal/ratelimit"
	"github.com/notekit/notekit/internal/search"
	"github.com/notekit/notekit/internal/stats"
)

const testAPIKey = "test-api-key"

func setupTestServer(t *testing.T) (*APIServer, *httptest.Server) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			created_by TEXT NOT NULL DEFAULT 'system',
			updated_by TEXT NOT NULL DEFAULT 'system',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("Failed to create notes table: %v", err)
	}

	cfg := &config.Config{
		APIKey:                 testAPIKey,
		RateLimit:              100,
		RateLimitWindowSeconds: 60,
	}

	searchCache := cache.New[[]search.Result](0)
	repo := models.NewNoteRepository(db, searchCache)
	engine := search.NewEngine(repo, searchCache)
	aggregator := stats.NewAggregator(repo)
	limiter := ratelimit.New(cfg.RateLimit, cfg.RateLimitWindow())

	server := NewAPIServer(cfg, db, repo, engine, aggregator, limiter)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return server, ts
}

func doRequest(t *testing.T, method, url string, body interface{}) *http.Response {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set(APIKeyHeader, testAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out interface{}) {
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("Failed to decode data: %v", err)
		}
	}
}

func createNote(t *testing.T, ts *httptest.Server, title, content string) models.Note {
	resp := doRequest(t, "POST", ts.URL+"/api/v1/notes", map[string]string{
		"title": title, "content": content,
	})
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		t.Fatalf("Create failed with status %d", resp.StatusCode)
	}
	var note models.Note
	decodeData(t, resp, &note)
	return note
}

func TestAuthRequired(t *testing.T) {
	_, ts := setupTestServer(t)

	req, _ := http.NewRequest("GET", ts.URL+"/api/v1/notes", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Missing key should 401, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest("GET", ts.URL+"/api/v1/notes", nil)
	req.Header.Set(APIKeyHeader, "wrong-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Wrong key should 401, got %d", resp.StatusCode)
	}
}

func TestRequestLoggingPassesThrough(t *testing.T) {
	logger.SetDebugMode(true)
	defer logger.SetDebugMode(false)

	_, ts := setupTestServer(t)

	// The recorder wrapper must not disturb handler responses.
	resp := doRequest(t, "GET", ts.URL+"/api/v1/notes", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with request logging enabled, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", ts.URL+"/api/v1/notes", nil)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 with request logging enabled, got %d", resp2.StatusCode)
	}
}

func TestStatusRecorderCapturesCode(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	rec.WriteHeader(http.StatusTeapot)
	if rec.status != http.StatusTeapot {
		t.Errorf("Expected recorded status 418, got %d", rec.status)
	}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	_, ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health should be reachable without a key, got %d", resp.StatusCode)
	}
}

func TestCreateNoteEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)

	resp := doRequest(t, "POST", ts.URL+"/api/v1/notes", map[string]string{
		"title": "  Hello   World  ", "content": "  body  text ",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	var note models.Note
	decodeData(t, resp, &note)
	if note.Title != "Hello World" || note.Content != "body text" {
		t.Errorf("Normalization wrong: %q / %q", note.Title, note.Content)
	}

	// The identical request replays idempotently with a 200.
	resp = doRequest(t, "POST", ts.URL+"/api/v1/notes", map[string]string{
		"title": "Hello World", "content": "body text",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Replay should 200, got %d", resp.StatusCode)
	}
	var replay models.Note
	decodeData(t, resp, &replay)
	if replay.ID != note.ID {
		t.Errorf("Replay should return the same note id")
	}
}

func TestCreateNoteValidation(t *testing.T) {
	_, ts := setupTestServer(t)

	for _, body := range []map[string]string{
		{"title": "", "content": "x"},
		{"title": "   ", "content": "x"},
		{"title": "x", "content": ""},
	} {
		resp := doRequest(t, "POST", ts.URL+"/api/v1/notes", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400 for %v, got %d", body, resp.StatusCode)
		}
	}
}

func TestRateLimitEndpoint(t *testing.T) {
	server, ts := setupTestServer(t)
	server.limiter = ratelimit.New(5, 60*time.Second)

	for i := 0; i < 5; i++ {
		resp := doRequest(t, "POST", ts.URL+"/api/v1/notes", map[string]string{
			"title": "note", "content": "content " + string(rune('a'+i)),
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("Create %d should succeed, got %d", i+1, resp.StatusCode)
		}
	}

	resp := doRequest(t, "POST", ts.URL+"/api/v1/notes", map[string]string{
		"title": "note", "content": "one too many",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("6th create should 429, got %d", resp.StatusCode)
	}

	var envelope APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if envelope.Error == "" {
		t.Error("429 response should carry a message with limit and window")
	}
}

func TestListNotesEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)

	for i := 0; i < 15; i++ {
		createNote(t, ts, "Note "+string(rune('a'+i)), "content")
	}

	resp := doRequest(t, "GET", ts.URL+"/api/v1/notes?page=2&limit=10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var list ListNotesResponse
	decodeData(t, resp, &list)
	if list.Total != 15 {
		t.Errorf("Expected total=15, got %d", list.Total)
	}
	if len(list.Data) != 5 {
		t.Errorf("Expected 5 notes on page 2, got %d", len(list.Data))
	}
	if list.Page != 2 || list.Limit != 10 {
		t.Errorf("Pagination metadata wrong: page=%d limit=%d", list.Page, list.Limit)
	}
}

func TestListNotesInvalidSort(t *testing.T) {
	_, ts := setupTestServer(t)

	resp := doRequest(t, "GET", ts.URL+"/api/v1/notes?sort_by=evil", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Invalid sort field should 400, got %d", resp.StatusCode)
	}
}

func TestUpdateNoteEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)

	note := createNote(t, ts, "Original", "Content")

	resp := doRequest(t, "PUT", ts.URL+"/api/v1/notes/"+note.ID, map[string]string{
		"title": "Renamed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var updated models.Note
	decodeData(t, resp, &updated)
	if updated.Title != "Renamed" || updated.Content != "Content" {
		t.Errorf("Update result wrong: %q / %q", updated.Title, updated.Content)
	}

	// Same normalized value again: no-op response shape.
	resp = doRequest(t, "PUT", ts.URL+"/api/v1/notes/"+note.ID, map[string]string{
		"title": "  Renamed ",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var noop struct {
		Message string      `json:"message"`
		Note    models.Note `json:"note"`
	}
	decodeData(t, resp, &noop)
	if noop.Message == "" {
		t.Error("No-op update should return a message")
	}
	if !noop.Note.UpdatedAt.Equal(updated.UpdatedAt) {
		t.Error("No-op update must not refresh updated_at")
	}
}

func TestUpdateNoteNotFound(t *testing.T) {
	_, ts := setupTestServer(t)

	resp := doRequest(t, "PUT", ts.URL+"/api/v1/notes/does-not-exist", map[string]string{
		"title": "x",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteNoteEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)

	note := createNote(t, ts, "Doomed", "Content")

	resp := doRequest(t, "DELETE", ts.URL+"/api/v1/notes/"+note.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	// Hidden from list and get afterwards.
	resp = doRequest(t, "GET", ts.URL+"/api/v1/notes/"+note.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Deleted note should 404, got %d", resp.StatusCode)
	}

	var list ListNotesResponse
	resp = doRequest(t, "GET", ts.URL+"/api/v1/notes", nil)
	decodeData(t, resp, &list)
	if list.Total != 0 {
		t.Errorf("Deleted note should not be listed, total=%d", list.Total)
	}

	// Re-delete is a success no-op, not an error.
	resp = doRequest(t, "DELETE", ts.URL+"/api/v1/notes/"+note.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Re-delete should 200, got %d", resp.StatusCode)
	}

	resp = doRequest(t, "DELETE", ts.URL+"/api/v1/notes/never-existed", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Unknown id should 404, got %d", resp.StatusCode)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)

	createNote(t, ts, "Go Notes", "about golang")
	createNote(t, ts, "Notes", "go is great")
	createNote(t, ts, "Cooking", "pasta")

	resp := doRequest(t, "GET", ts.URL+"/api/v1/notes/search?q=go", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var results []search.Result
	decodeData(t, resp, &results)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Note.Title != "Go Notes" {
		t.Errorf("Title match should rank first, got %q", results[0].Note.Title)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("Scores should be descending: %d, %d", results[0].Score, results[1].Score)
	}
}

func TestSearchEmptyQueryEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)

	resp := doRequest(t, "GET", ts.URL+"/api/v1/notes/search?q=+++", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Empty query should 400, got %d", resp.StatusCode)
	}
}

func TestSearchReflectsMutations(t *testing.T) {
	_, ts := setupTestServer(t)

	createNote(t, ts, "foo one", "content")

	resp := doRequest(t, "GET", ts.URL+"/api/v1/notes/search?q=foo", nil)
	var results []search.Result
	decodeData(t, resp, &results)
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	// A mutation between searches must invalidate the cached result.
	createNote(t, ts, "foo two", "content two")

	resp = doRequest(t, "GET", ts.URL+"/api/v1/notes/search?q=foo", nil)
	decodeData(t, resp, &results)
	if len(results) != 2 {
		t.Errorf("Search after create must see the new note, got %d results", len(results))
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)

	// Empty store returns zeros, not an error.
	resp := doRequest(t, "GET", ts.URL+"/api/v1/notes/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Stats on empty store should 200, got %d", resp.StatusCode)
	}
	var summary stats.Summary
	decodeData(t, resp, &summary)
	if summary.TotalNotes != 0 || summary.LastUpdatedNoteID != "" {
		t.Errorf("Expected zero-valued stats, got %+v", summary)
	}

	createNote(t, ts, "Tracked", "content")
	deleted := createNote(t, ts, "Gone", "other content")
	resp = doRequest(t, "DELETE", ts.URL+"/api/v1/notes/"+deleted.ID, nil)
	resp.Body.Close()

	resp = doRequest(t, "GET", ts.URL+"/api/v1/notes/stats", nil)
	decodeData(t, resp, &summary)
	if summary.TotalNotes != 1 {
		t.Errorf("Deleted note must not count as active, got %d", summary.TotalNotes)
	}
	if summary.CreatedToday != 1 {
		t.Errorf("Expected 1 created today, got %d", summary.CreatedToday)
	}
	if summary.LastUpdatedNoteID != deleted.ID {
		t.Errorf("Most recently touched note should win, got %s", summary.LastUpdatedNoteID)
	}
}
