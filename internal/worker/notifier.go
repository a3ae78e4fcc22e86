package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/paincake00/geotrack/internal/entity"
	"github.com/paincake00/geotrack/internal/usecase"
)

// WebhookNotifier posts presence transitions to an external URL. Delivery
// runs in the background so a slow receiver never stalls the worker. Close
// aborts pending deliveries and their retries.
type WebhookNotifier struct {
	URL        string
	MaxRetries int
	// Delay is the unit of the linear backoff: attempt i waits (2i+1)*Delay.
	Delay  time.Duration
	Client *http.Client
	Logger *slog.Logger

	// deliveries outlive the item that triggered them, so they run on the
	// notifier's own lifetime instead of the caller's ctx
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebhookNotifier{
		URL:        url,
		MaxRetries: 3,
		Delay:      time.Second,
		Client:     &http.Client{Timeout: 5 * time.Second},
		Logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, t entity.Transition) {
	data, err := json.Marshal(t)
	if err != nil {
		n.Logger.Error("webhook_encode_error", "user_id", t.UserID, "err", err)
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(n.ctx, data)
	}()
}

// Close cancels in-flight deliveries. Notify after Close drops the event.
func (n *WebhookNotifier) Close() {
	n.cancel()
}

// Wait blocks until every started delivery has finished.
func (n *WebhookNotifier) Wait() {
	n.wg.Wait()
}

func (n *WebhookNotifier) deliver(ctx context.Context, data []byte) {
	for i := 0; i < n.MaxRetries; i++ {
		if ctx.Err() != nil {
			break
		}
		err := n.send(ctx, data)
		if err == nil {
			n.Logger.Debug("webhook_sent", "url", n.URL)
			return
		}
		n.Logger.Warn("webhook_send_error", "attempt", i+1, "max", n.MaxRetries, "err", err)
		if i < n.MaxRetries-1 {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(2*i+1) * n.Delay):
			}
		}
	}
	n.Logger.Error("webhook_given_up", "url", n.URL, "payload", string(data))
}

func (n *WebhookNotifier) send(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned status: %d", resp.StatusCode)
	}
	return nil
}

// BroadcastNotifier publishes presence transitions on a broadcast channel.
type BroadcastNotifier struct {
	Broadcaster usecase.Broadcaster
	Channel     string
	Logger      *slog.Logger
}

func NewBroadcastNotifier(b usecase.Broadcaster, channel string, logger *slog.Logger) *BroadcastNotifier {
	return &BroadcastNotifier{Broadcaster: b, Channel: channel, Logger: logger}
}

func (n *BroadcastNotifier) Notify(ctx context.Context, t entity.Transition) {
	if err := n.Broadcaster.Publish(ctx, n.Channel, t); err != nil {
		n.Logger.Error("presence_broadcast_error", "user_id", t.UserID, "err", err)
	}
}
