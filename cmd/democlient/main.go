// Command democlient walks a user along a straight line, posting one fix per
// tick, and prints every fix the server broadcasts for that user.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/paincake00/geotrack/internal/env"
	"github.com/paincake00/geotrack/internal/logger"
)

type fixRequest struct {
	UserID    int64     `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
	Timestamp time.Time `json:"timestamp"`
}

func main() {
	_ = godotenv.Load()

	var (
		server   = flag.String("server", env.GetString("GEOTRACK_URL", "http://localhost:8080"), "server base URL")
		apiKey   = flag.String("key", env.GetString("API_KEY", ""), "API key")
		userID   = flag.Int64("user", int64(env.GetInt("DEMO_USER_ID", 1)), "user id")
		lat      = flag.Float64("lat", env.GetFloat("DEMO_LAT", 45.8150), "start latitude")
		lng      = flag.Float64("lng", env.GetFloat("DEMO_LNG", 15.9819), "start longitude")
		step     = flag.Float64("step", 0.0005, "degrees moved per tick on both axes")
		interval = flag.Duration("interval", env.GetDuration("DEMO_INTERVAL", time.Second), "time between fixes")
	)
	flag.Parse()

	log := logger.Setup(env.GetString("LOG_LEVEL", "info"), env.GetString("LOG_FORMAT", "text"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := stream(ctx, *server, *userID); err != nil && ctx.Err() == nil {
			log.Error("stream_error", "err", err)
		}
	}()

	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		fix := fixRequest{
			UserID:    *userID,
			Latitude:  *lat + float64(i)**step,
			Longitude: *lng + float64(i)**step,
			Speed:     1.4,
			Timestamp: time.Now().UTC(),
		}
		if err := post(ctx, client, *server, *apiKey, fix); err != nil {
			log.Error("post_error", "err", err)
		} else {
			log.Info("fix_sent", "lat", fix.Latitude, "lng", fix.Longitude)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func post(ctx context.Context, client *http.Client, server, apiKey string, fix fixRequest) error {
	body, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/v1/tracking", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned status: %d", resp.StatusCode)
	}
	return nil
}

// stream prints the data lines of the server's event stream until ctx is done.
func stream(ctx context.Context, server string, userID int64) error {
	url := fmt.Sprintf("%s/api/v1/tracking/stream?user_id=%d", server, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status: %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if data, ok := strings.CutPrefix(sc.Text(), "data:"); ok {
			fmt.Println(strings.TrimSpace(data))
		}
	}
	return sc.Err()
}
