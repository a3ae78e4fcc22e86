// Command mock is a webhook sink for presence transitions. POST stores an
// event, GET lists everything received so far.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/paincake00/geotrack/internal/entity"
	"github.com/paincake00/geotrack/internal/env"
	"github.com/paincake00/geotrack/internal/logger"
)

type Event struct {
	Transition entity.Transition `json:"transition"`
	ReceivedAt string            `json:"received_at"`
}

type sink struct {
	mu     sync.Mutex
	events []Event
}

func (s *sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		var t entity.Transition
		if err := json.Unmarshal(body, &t); err != nil || t.UserID == 0 {
			http.Error(w, "invalid transition", http.StatusBadRequest)
			return
		}
		logger.L().Info("webhook_received", "event", t.Event, "user_id", t.UserID, "location_id", t.LocationID)

		s.mu.Lock()
		s.events = append(s.events, Event{Transition: t, ReceivedAt: time.Now().Format(time.RFC3339)})
		s.mu.Unlock()

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")

	case http.MethodGet:
		s.mu.Lock()
		defer s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.events); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func main() {
	log := logger.Setup(env.GetString("LOG_LEVEL", "info"), env.GetString("LOG_FORMAT", "text"))
	port := env.GetString("PORT", "9090")

	log.Info("mock_listen", "port", port)
	if err := http.ListenAndServe(":"+port, &sink{events: []Event{}}); err != nil {
		log.Error("mock_server_error", "err", err)
		os.Exit(1)
	}
}
