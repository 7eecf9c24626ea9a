package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// StartMockAPIServer runs a small mock API for exercising the scheduler.
// Call this in a goroutine before starting a run.
//
// Endpoints:
//
//	/items        JSON list of item IDs
//	/item?id=N    single item, 50-200ms simulated latency
//	/flaky        returns 500 roughly a third of the time
func StartMockAPIServer(addr string) {
	http.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		ids := make([]int, 8)
		for i := range ids {
			ids[i] = i + 1
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string][]int{"items": ids}); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	http.HandleFunc("/item", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]string{
			"id":   id,
			"name": fmt.Sprintf("item-%s", id),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	http.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if rand.Intn(3) == 0 {
			http.Error(w, "transient failure", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
