// Package main provides a load generator for donations and the realtime feed.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	SupportsSent         int64
	SupportsRejected     int64
	SupportEvents        int64
	RankingEvents        int64
	Errors               int64
}

var metrics Metrics

var httpClient = &http.Client{Timeout: 5 * time.Second}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	token := flag.String("token", os.Getenv("PATRONAGE_TOKEN"), "Bearer token (see `cmd/admin token`)")
	postID := flag.Uint("post", 1, "Post to support")
	amount := flag.Int("amount", 100, "Donation amount (100, 500 or 1000)")
	clients := flag.Int("clients", 20, "Number of concurrent clients")
	interval := flag.Duration("interval", 2*time.Second, "Delay between donations per client")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	flag.Parse()

	if *token == "" {
		log.Fatal("❌ -token or PATRONAGE_TOKEN is required")
	}

	log.Printf("🚀 Starting Support Stress Test")
	log.Printf("Target: %s post=%d amount=%d", *host, *postID, *amount)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		c := client{host: *host, token: *token, postID: *postID, amount: *amount, interval: *interval}
		go c.run(stopChan, &wg)
		time.Sleep(50 * time.Millisecond) // Stagger connections to allow ticket issuance
	}

	select {
	case <-time.After(*duration):
		log.Println("⏱️  Test duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

type client struct {
	host     string
	token    string
	postID   uint
	amount   int
	interval time.Duration
}

func (c client) authorized(method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(method, fmt.Sprintf("http://%s%s", c.host, path), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return httpClient.Do(req)
}

func (c client) ticket() (string, error) {
	resp, err := c.authorized(http.MethodPost, "/api/ws/ticket", nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}

	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Ticket, nil
}

func (c client) support() error {
	body, _ := json.Marshal(map[string]int{"amount": c.amount})
	resp, err := c.authorized(http.MethodPost, fmt.Sprintf("/api/posts/%d/support", c.postID), body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		atomic.AddInt64(&metrics.SupportsRejected, 1)
		return nil
	}
	atomic.AddInt64(&metrics.SupportsSent, 1)
	return nil
}

func (c client) run(stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	ticket, err := c.ticket()
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: c.host, Path: "/api/ws", RawQuery: "ticket=" + ticket}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = conn.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(raw, &ev) != nil {
				continue
			}
			switch ev.Type {
			case "support_received":
				atomic.AddInt64(&metrics.SupportEvents, 1)
			case "ranking_updated":
				atomic.AddInt64(&metrics.RankingEvents, 1)
			}
		}
	}()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := c.support(); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
			}
		}
	}
}

func printMetrics() {
	log.Println("\n📊 Test Results")
	log.Println("===============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Supports Accepted: %d", atomic.LoadInt64(&metrics.SupportsSent))
	log.Printf("Supports Rejected: %d", atomic.LoadInt64(&metrics.SupportsRejected))
	log.Printf("support_received Events: %d", atomic.LoadInt64(&metrics.SupportEvents))
	log.Printf("ranking_updated Events: %d", atomic.LoadInt64(&metrics.RankingEvents))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
