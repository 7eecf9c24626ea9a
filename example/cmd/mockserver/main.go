// Standalone mock server for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/rollingfetch run -c example/jobs.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	fmt.Println("Mock API server starting on :9999")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	http.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		ids := make([]int, 8)
		for i := range ids {
			ids[i] = i + 1
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string][]int{"items": ids})
	})

	http.HandleFunc("/item", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")

		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":   id,
			"name": fmt.Sprintf("item-%s", id),
		})
	})

	http.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if rand.Intn(3) == 0 {
			http.Error(w, "transient failure", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
