package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jpalmerr/rollingfetch"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// start mock server (see mock_server.go)
	go StartMockAPIServer(":9999")
	time.Sleep(100 * time.Millisecond)

	fmt.Println()
	fmt.Println("rollingfetch demo")
	fmt.Println("  window 3, seeded with a listing request plus 3 flaky probes")
	fmt.Println("  items discovered in the listing are enqueued from the callback")
	fmt.Println()

	// the listing response enqueues one request per discovered item, so the
	// run grows from 4 seeded requests to 12 total
	sched, err := rollingfetch.New(
		rollingfetch.WithWindow(3),
		rollingfetch.WithDefaultHeaders(map[string]string{
			"User-Agent": "rollingfetch-example/1.0",
		}),
		rollingfetch.WithLogger(logger),
		rollingfetch.WithCallback(func(req *rollingfetch.Request, q rollingfetch.Queue) {
			if err := req.Err(); err != nil {
				fmt.Printf("  FAIL %-40s %v\n", req.URL(), err)
				return
			}

			info := req.Info()
			fmt.Printf("  %d   %-40s %s\n", info.StatusCode, req.URL(), info.Duration.Round(time.Millisecond))

			if req.URL() != "http://localhost:9999/items" {
				return
			}

			// fan out: one request per item in the listing
			var listing struct {
				Items []int `json:"items"`
			}
			if err := json.Unmarshal(req.ResponseBody(), &listing); err != nil {
				fmt.Printf("  bad listing payload: %v\n", err)
				return
			}
			for _, id := range listing.Items {
				q.Get(fmt.Sprintf("http://localhost:9999/item?id=%d", id))
			}
		}),
	)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	sched.Get("http://localhost:9999/items")
	for i := 0; i < 3; i++ {
		sched.Get("http://localhost:9999/flaky")
	}

	if err := sched.Run(context.Background()); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("done: %d requests completed\n", sched.TotalCompleted())
}
