// Package e2e contains end-to-end tests that exercise a running percolator
// daemon over its HTTP API: register queries, match documents, and verify the
// positional hits on the wire.
//
// Prerequisites:
//   - monitord running (PostgreSQL, Kafka, and Redis optional; the daemon
//     degrades gracefully without them)
//
// Run with:
//
//	go test -v -timeout=60s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func daemonURL() string {
	if v := os.Getenv("E2E_MONITORD_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func skipIfNoDaemon(t *testing.T, client *http.Client) string {
	t.Helper()
	base := daemonURL()
	resp, err := client.Get(base + "/health/live")
	if err != nil {
		t.Skipf("monitord unavailable at %s: %v", base, err)
	}
	resp.Body.Close()
	return base
}

func TestDaemonHealth(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := skipIfNoDaemon(t, client)

	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(base + path)
			if err != nil {
				t.Fatalf("health request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

func TestRegisterAndMatchLifecycle(t *testing.T) {
	client := &http.Client{Timeout: 10 * time.Second}
	base := skipIfNoDaemon(t, client)

	// A unique term keeps this run isolated from whatever else is registered.
	word := fmt.Sprintf("e2eterm%d", time.Now().UnixNano())
	queryID := "e2e-" + word

	// 1. Register the query.
	payload := fmt.Sprintf(
		`[{"id":"%s","query":{"type":"term","field":"text","term":"%s"},"metadata":{"owner":"e2e"}}]`,
		queryID, word)
	resp, err := client.Post(base+"/api/v1/queries", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("register: expected 200, got %d: %s", resp.StatusCode, body)
	}

	t.Cleanup(func() {
		req, _ := http.NewRequest(http.MethodDelete, base+"/api/v1/queries/"+queryID, nil)
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
		}
	})

	// 2. The query is readable back.
	getResp, err := client.Get(base + "/api/v1/queries/" + queryID)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", getResp.StatusCode)
	}

	// 3. A document containing the term matches with the right offsets.
	doc := fmt.Sprintf(`{"id":"e2e-doc","analyzer":"whitespace","text":"leading words then %s here"}`, word)
	matchResp, err := client.Post(base+"/api/v1/match", "application/json", strings.NewReader(doc))
	if err != nil {
		t.Fatalf("match request failed: %v", err)
	}
	defer matchResp.Body.Close()
	if matchResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(matchResp.Body)
		t.Fatalf("match: expected 200, got %d: %s", matchResp.StatusCode, body)
	}

	var result struct {
		DocID   string `json:"docId"`
		Matches map[string]map[string][]struct {
			StartPosition int `json:"startPosition"`
			StartOffset   int `json:"startOffset"`
			EndOffset     int `json:"endOffset"`
		} `json:"matches"`
	}
	if err := json.NewDecoder(matchResp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding match result: %v", err)
	}
	hits, ok := result.Matches[queryID]
	if !ok {
		t.Fatalf("query %s missing from matches: %v", queryID, result.Matches)
	}
	textHits := hits["text"]
	if len(textHits) != 1 {
		t.Fatalf("hits = %v, want one", textHits)
	}
	if textHits[0].StartPosition != 3 {
		t.Errorf("hit position = %d, want 3", textHits[0].StartPosition)
	}
	if got := textHits[0].EndOffset - textHits[0].StartOffset; got != len(word) {
		t.Errorf("hit span = %d bytes, want %d", got, len(word))
	}

	// 4. A document without the term does not match.
	miss := `{"id":"e2e-doc-miss","analyzer":"whitespace","text":"entirely unrelated content"}`
	missResp, err := client.Post(base+"/api/v1/match", "application/json", strings.NewReader(miss))
	if err != nil {
		t.Fatalf("miss request failed: %v", err)
	}
	defer missResp.Body.Close()
	var missResult struct {
		Matches map[string]json.RawMessage `json:"matches"`
	}
	if err := json.NewDecoder(missResp.Body).Decode(&missResult); err != nil {
		t.Fatalf("decoding miss result: %v", err)
	}
	if _, ok := missResult.Matches[queryID]; ok {
		t.Errorf("query %s matched an unrelated document", queryID)
	}
}

func TestStatsEndpoint(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := skipIfNoDaemon(t, client)

	resp, err := client.Get(base + "/api/v1/queries")
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var stats map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if _, ok := stats["queries"]; !ok {
		t.Errorf("stats missing queries counter: %v", stats)
	}
}
