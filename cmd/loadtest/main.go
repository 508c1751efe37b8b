// Command loadtest drives a running percolator daemon with synthetic
// documents to measure match throughput and latency. It first seeds a batch
// of term queries over a fixed vocabulary, then hammers the match endpoint
// with documents drawn from the same vocabulary so a realistic fraction of
// requests produce matches.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var vocabulary = []string{
	"breach", "leak", "exposure", "incident", "credential", "ransomware",
	"phishing", "malware", "exfiltration", "vulnerability", "patch",
	"advisory", "disclosure", "outage", "compromise", "forensics",
	"takedown", "botnet", "payload", "exploit", "remediation",
	"containment", "escalation", "audit", "compliance", "encryption",
	"rotation", "revocation", "quarantine", "sandbox",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	QueryCount  int
	DocWords    int
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	matchedDocs   atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, matched bool, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
		if matched {
			s.matchedDocs.Add(1)
		}
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the percolator daemon")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queryCount := flag.Int("queries", 200, "number of queries to seed before the run")
	docWords := flag.Int("doc-words", 40, "words per synthetic document")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		QueryCount:  *queryCount,
		DocWords:    *docWords,
	}

	fmt.Println("=== Percolator Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d seeded\n", cfg.QueryCount)
	fmt.Println()

	if err := seedQueries(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "seeding queries failed: %v\n", err)
		os.Exit(1)
	}

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

// seedQueries registers QueryCount single-term queries over the vocabulary so
// documents built from the same vocabulary hit a predictable share of them.
func seedQueries(cfg Config) error {
	var batch strings.Builder
	batch.WriteString("[")
	for i := 0; i < cfg.QueryCount; i++ {
		if i > 0 {
			batch.WriteString(",")
		}
		term := vocabulary[i%len(vocabulary)]
		fmt.Fprintf(&batch,
			`{"id":"loadtest-q%d","query":{"type":"term","field":"text","term":"%s"}}`,
			i, term)
	}
	batch.WriteString("]")

	resp, err := http.Post(cfg.BaseURL+"/api/v1/queries", "application/json",
		strings.NewReader(batch.String()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("register returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

func randomDocument(rng *rand.Rand, id int, words int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `{"id":"loadtest-doc%d","analyzer":"whitespace","text":"`, id)
	for i := 0; i < words; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(vocabulary[rng.Intn(len(vocabulary))])
	}
	b.WriteString(`"}`)
	return b.String()
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(workerID)))
			docID := workerID * 1_000_000

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				doc := randomDocument(rng, docID, cfg.DocWords)
				docID++

				start := time.Now()
				req, err := http.NewRequestWithContext(ctx, http.MethodPost,
					cfg.BaseURL+"/api/v1/match", strings.NewReader(doc))
				if err != nil {
					stats.RecordRequest(time.Since(start), 0, false, err)
					continue
				}
				req.Header.Set("Content-Type", "application/json")

				resp, err := client.Do(req)
				duration := time.Since(start)
				if err != nil {
					stats.RecordRequest(duration, 0, false, err)
					continue
				}
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()

				// Cheap matched heuristic: a non-empty matches object.
				matched := strings.Contains(string(body), `"matches":{"`)
				stats.RecordRequest(duration, resp.StatusCode, matched, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()
	matched := stats.matchedDocs.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Matched Docs:    %d\n", matched)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Docs/sec:        %.2f\n", rps)
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		count := stats.statusCodes[code].Load()
		fmt.Printf("  %d: %d\n", code, count)
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the daemon running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
