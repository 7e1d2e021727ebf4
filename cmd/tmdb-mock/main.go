package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
)

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "mock-tmdb.json", "path to a JSON object of detail payloads keyed by film id")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read mock data: %v", err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(file, &payload); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/3/movie/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/3/movie/")
		if *verbose {
			log.Printf("GET movie %s (language=%s)", id, r.URL.Query().Get("language"))
		}
		if r.URL.Query().Get("api_key") == "" {
			http.Error(w, `{"status_message":"Invalid API key"}`, http.StatusUnauthorized)
			return
		}
		entry, ok := payload[id]
		if !ok {
			http.Error(w, `{"status_message":"The resource you requested could not be found."}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(entry)
	})

	addr := ":" + *port
	log.Printf("mock tmdb listening on %s with %d films (use TMDB_URL=http://localhost%s/3)", addr, len(payload), addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
