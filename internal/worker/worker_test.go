package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paincake00/geotrack/internal/entity"
	"github.com/paincake00/geotrack/internal/logger"
	"github.com/paincake00/geotrack/internal/worker"
)

// --- Mocks ---

type MockProcessor struct {
	mu     sync.Mutex
	Seen   []int64
	FailOn map[int64]bool
	// Done is closed once Want items were seen.
	Want int
	Done chan struct{}
}

func (m *MockProcessor) Process(ctx context.Context, item entity.PendingWork) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Seen = append(m.Seen, item.FixID)
	if len(m.Seen) == m.Want {
		close(m.Done)
	}
	if m.FailOn[item.FixID] {
		return errors.New("store unavailable")
	}
	return nil
}

func (m *MockProcessor) seen() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.Seen...)
}

// SlowProcessor takes Duration per item unless its ctx ends first.
type SlowProcessor struct {
	Duration time.Duration
	Started  chan struct{}
	Result   chan error
}

func (m *SlowProcessor) Process(ctx context.Context, item entity.PendingWork) error {
	close(m.Started)
	select {
	case <-time.After(m.Duration):
		m.Result <- nil
		return nil
	case <-ctx.Done():
		m.Result <- ctx.Err()
		return ctx.Err()
	}
}

type MockWarmer struct {
	Fails int32
	Calls int32
}

func (m *MockWarmer) WarmLocations(ctx context.Context) (int, error) {
	n := atomic.AddInt32(&m.Calls, 1)
	if n <= m.Fails {
		return 0, errors.New("connection refused")
	}
	return 0, nil
}

type MockBroadcaster struct {
	Channel string
	Payload interface{}
	Err     error
}

func (m *MockBroadcaster) Publish(ctx context.Context, channel string, payload interface{}) error {
	m.Channel, m.Payload = channel, payload
	return m.Err
}

// --- Tests ---

func TestQueue_FIFO(t *testing.T) {
	q := worker.NewQueue()
	if _, ok := q.Dequeue(); ok {
		t.Error("Expected empty queue")
	}
	for i := int64(1); i <= 3; i++ {
		q.Enqueue(entity.PendingWork{FixID: i})
	}
	if q.Len() != 3 {
		t.Errorf("Expected 3 items, got %d", q.Len())
	}
	for i := int64(1); i <= 3; i++ {
		item, ok := q.Dequeue()
		if !ok || item.FixID != i {
			t.Errorf("Expected item %d, got %+v", i, item)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", q.Len())
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := worker.NewQueue()
	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(entity.PendingWork{FixID: int64(i)})
			}
		}()
	}
	wg.Wait()
	if q.Len() != 1000 {
		t.Errorf("Expected 1000 items, got %d", q.Len())
	}
}

func TestWorker_ProcessesInOrderAndDropsFailures(t *testing.T) {
	q := worker.NewQueue()
	for i := int64(1); i <= 4; i++ {
		q.Enqueue(entity.PendingWork{FixID: i})
	}
	p := &MockProcessor{FailOn: map[int64]bool{2: true}, Want: 5, Done: make(chan struct{})}
	w := worker.New(q, p, &MockWarmer{}, 10*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	// picked up on a later drain cycle
	time.Sleep(30 * time.Millisecond)
	q.Enqueue(entity.PendingWork{FixID: 5})

	select {
	case <-p.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("Worker did not process all items")
	}
	cancel()
	<-stopped

	got := p.seen()
	want := []int64{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
			break
		}
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", q.Len())
	}
}

func TestWorker_RetriesWarmUpBeforeProcessing(t *testing.T) {
	q := worker.NewQueue()
	q.Enqueue(entity.PendingWork{FixID: 1})
	warmer := &MockWarmer{Fails: 2}
	p := &MockProcessor{Want: 1, Done: make(chan struct{})}
	w := worker.New(q, p, warmer, 10*time.Millisecond, logger.Discard())
	w.RetryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	select {
	case <-p.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("Worker did not process the item")
	}
	if n := atomic.LoadInt32(&warmer.Calls); n != 3 {
		t.Errorf("Expected 3 warm-up attempts, got %d", n)
	}
}

func TestWorker_StopsDuringWarmUp(t *testing.T) {
	q := worker.NewQueue()
	q.Enqueue(entity.PendingWork{FixID: 1})
	p := &MockProcessor{Want: 1, Done: make(chan struct{})}
	w := worker.New(q, p, &MockWarmer{Fails: 1 << 30}, 10*time.Millisecond, logger.Discard())
	w.RetryDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	w.Start(ctx)

	if len(p.seen()) != 0 {
		t.Error("Expected no item processed before warm-up succeeded")
	}
	if q.Len() != 1 {
		t.Errorf("Expected item to stay queued, got %d", q.Len())
	}
}

func TestWorker_FinishesInFlightItemOnShutdown(t *testing.T) {
	q := worker.NewQueue()
	q.Enqueue(entity.PendingWork{FixID: 1})
	q.Enqueue(entity.PendingWork{FixID: 2})
	p := &SlowProcessor{
		Duration: 200 * time.Millisecond,
		Started:  make(chan struct{}),
		Result:   make(chan error, 1),
	}
	w := worker.New(q, p, &MockWarmer{}, 10*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	select {
	case <-p.Started:
	case <-time.After(2 * time.Second):
		t.Fatal("Worker did not start the item")
	}
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Worker did not stop")
	}
	if err := <-p.Result; err != nil {
		t.Errorf("Expected in-flight item to finish, got %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("Expected the next item to stay queued, got %d", q.Len())
	}
}

func TestWorker_ItemTimeout(t *testing.T) {
	q := worker.NewQueue()
	q.Enqueue(entity.PendingWork{FixID: 1})
	p := &SlowProcessor{
		Duration: time.Minute,
		Started:  make(chan struct{}),
		Result:   make(chan error, 1),
	}
	w := worker.New(q, p, &MockWarmer{}, 10*time.Millisecond, logger.Discard())
	w.ItemTimeout = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	select {
	case err := <-p.Result:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline exceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Item was not cut off by its timeout")
	}
}

func TestWebhookNotifier_RetriesUntilSuccess(t *testing.T) {
	var calls int32
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := worker.NewWebhookNotifier(srv.URL, logger.Discard())
	n.Delay = time.Millisecond
	n.Notify(context.Background(), entity.Transition{
		Event: "user_entered_location", UserID: 42, Kind: entity.TransitionEntered, LocationID: 7,
	})
	n.Wait()

	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls)
	}
	var got entity.Transition
	if err := json.Unmarshal(<-bodies, &got); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if got.UserID != 42 || got.LocationID != 7 || got.Kind != entity.TransitionEntered {
		t.Errorf("Unexpected payload: %+v", got)
	}
}

func TestWebhookNotifier_GivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := worker.NewWebhookNotifier(srv.URL, logger.Discard())
	n.Delay = time.Millisecond
	n.Notify(context.Background(), entity.Transition{UserID: 1})
	n.Wait()

	if atomic.LoadInt32(&calls) != int32(n.MaxRetries) {
		t.Errorf("Expected %d attempts, got %d", n.MaxRetries, calls)
	}
}

func TestWebhookNotifier_CloseStopsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := worker.NewWebhookNotifier(srv.URL, logger.Discard())
	n.Delay = time.Second
	n.Notify(context.Background(), entity.Transition{UserID: 1})

	// let the first attempt fail so the delivery sits in its backoff
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	start := time.Now()
	n.Close()
	n.Wait()

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Expected Wait to return promptly after Close, took %v", elapsed)
	}
	if got := atomic.LoadInt32(&calls); got >= int32(n.MaxRetries) {
		t.Errorf("Expected fewer than %d attempts, got %d", n.MaxRetries, got)
	}
}

func TestBroadcastNotifier(t *testing.T) {
	b := &MockBroadcaster{}
	n := worker.NewBroadcastNotifier(b, "presence", logger.Discard())

	tr := entity.Transition{UserID: 3, Kind: entity.TransitionExited, LocationID: 9}
	n.Notify(context.Background(), tr)

	if b.Channel != "presence" {
		t.Errorf("Expected channel presence, got %s", b.Channel)
	}
	if got, ok := b.Payload.(entity.Transition); !ok || got != tr {
		t.Errorf("Unexpected payload: %+v", b.Payload)
	}

	b.Err = errors.New("redis down")
	n.Notify(context.Background(), tr)
}
