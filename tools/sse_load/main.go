// Command sse_load opens many concurrent connections to the price stream and
// reports how many "prices" events each round delivered.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

type loadStats struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	prices      atomic.Int64
	notices     atomic.Int64
	lastID      atomic.Uint64
}

func (s *loadStats) String() string {
	return fmt.Sprintf("connected=%d connect_errs=%d stream_errs=%d prices=%d notices=%d last_id=%d",
		s.connected.Load(), s.connectErrs.Load(), s.streamErrs.Load(),
		s.prices.Load(), s.notices.Load(), s.lastID.Load())
}

func main() {
	var (
		targetURL    string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
		lastEventID  string
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8000/prices/stream", "price stream URL")
	flag.IntVar(&connections, "conns", 500, "number of concurrent connections to open")
	flag.DurationVar(&testDuration, "dur", 30*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "ramp-up duration (spread connection starts across this window)")
	flag.StringVar(&lastEventID, "last-event-id", "", "resume every connection after this journal index")
	flag.Parse()

	if connections <= 0 {
		log.Fatalf("invalid conns: %d", connections)
	}
	if rampUp == 0 && connections > 100 {
		rampUp = max(time.Duration(connections/500)*time.Second, time.Second)
		log.Printf("No ramp-up specified for high connection count. Using default ramp-up: %s", rampUp)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	log.Printf("starting price stream load: url=%s conns=%d duration=%s ramp=%s", targetURL, connections, testDuration, rampUp)

	var (
		stats loadStats
		wg    sync.WaitGroup
		start = time.Now()
	)

	go report(ctx, &stats, start)

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(connections)
	}

	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			stream(ctx, client, targetURL, lastEventID, &stats)
		}()
	}

	wg.Wait()

	elapsed := max(time.Since(start), time.Millisecond)
	fmt.Printf("done: %s elapsed=%s prices/s=%.2f\n",
		stats.String(), elapsed.Truncate(time.Millisecond), float64(stats.prices.Load())/elapsed.Seconds())
}

func stream(ctx context.Context, client *http.Client, url, lastEventID string, stats *loadStats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		stats.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := client.Do(req)
	if err != nil {
		stats.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		stats.connectErrs.Add(1)
		return
	}
	stats.connected.Add(1)

	if err := countEvents(resp.Body, stats); err != nil && ctx.Err() == nil {
		stats.streamErrs.Add(1)
	}
}

// countEvents reads SSE frames until r fails, counting prices and notices.
func countEvents(r io.Reader, stats *loadStats) error {
	reader := bufio.NewReader(r)
	var id uint64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, "id: "):
			fmt.Sscanf(strings.TrimPrefix(line, "id: "), "%d", &id)
		case line == "event: prices":
			stats.prices.Add(1)
			for {
				cur := stats.lastID.Load()
				if id <= cur || stats.lastID.CompareAndSwap(cur, id) {
					break
				}
			}
		case line == "event: notice":
			stats.notices.Add(1)
		}
	}
}

func report(ctx context.Context, stats *loadStats, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("status: %s elapsed=%s", stats.String(), time.Since(start).Truncate(time.Second))
		}
	}
}
