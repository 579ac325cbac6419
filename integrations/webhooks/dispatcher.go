package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// EventType is the logical webhook topic.
type EventType string

const (
	// EventPlanApplied is emitted after a withdrawal plan debits a ledger.
	EventPlanApplied EventType = "silo.plan.applied"
	// EventSunrise is emitted when the gameday advances.
	EventSunrise EventType = "silo.sunrise"

	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultQueueSize   = 32
)

var (
	// ErrQueueFull is returned when the delivery queue has no free slot.
	// Enqueueing never blocks the caller.
	ErrQueueFull = errors.New("webhook: delivery queue full")
	// ErrDispatcherClosed is returned after Close.
	ErrDispatcherClosed = errors.New("webhook: dispatcher closed")
)

// PlanAppliedPayload is the body of plan applied deliveries. Amounts are
// decimal strings in raw units.
type PlanAppliedPayload struct {
	Type       EventType `json:"type"`
	PlanID     string    `json:"planId"`
	Account    string    `json:"account"`
	Token      string    `json:"token"`
	Gameday    uint64    `json:"gameday"`
	Amount     string    `json:"amount"`
	Horde      string    `json:"horde"`
	Crates     int       `json:"crates"`
	AppliedAt  time.Time `json:"appliedAt"`
	DeliveryID string    `json:"deliveryId"`
}

// SunrisePayload is the body of sunrise deliveries.
type SunrisePayload struct {
	Type       EventType `json:"type"`
	Gameday    uint64    `json:"gameday"`
	Skipped    uint64    `json:"skipped"`
	StateRoot  string    `json:"stateRoot"`
	At         time.Time `json:"at"`
	DeliveryID string    `json:"deliveryId"`
}

// Dispatcher delivers signed webhooks with retry and exponential backoff.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger
	outbox      *Outbox
	queueSize   int

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan delivery
	wg     sync.WaitGroup
}

type delivery struct {
	id        string
	eventType EventType
	body      []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithLogger reports failed deliveries to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithOutbox persists deliveries in outbox until they complete. Deliveries
// left over from a previous run are replayed when the worker starts.
func WithOutbox(outbox *Outbox) Option {
	return func(d *Dispatcher) {
		d.outbox = outbox
	}
}

// WithQueueSize bounds the in-memory delivery queue.
func WithQueueSize(size int) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// NewDispatcher constructs a dispatcher and spawns the worker goroutine.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: 15 * time.Second},
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		logger:      slog.Default(),
		ctx:         ctx,
		cancel:      cancel,
		queueSize:   defaultQueueSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan delivery, d.queueSize)
	d.wg.Add(1)
	go d.worker()
	return d, nil
}

// Close stops the dispatcher and waits for inflight deliveries to complete.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
}

// PlanApplied queues a plan applied delivery.
func (d *Dispatcher) PlanApplied(payload PlanAppliedPayload) error {
	payload.Type = EventPlanApplied
	if payload.AppliedAt.IsZero() {
		payload.AppliedAt = time.Now().UTC()
	}
	if payload.DeliveryID == "" {
		payload.DeliveryID = fmt.Sprintf("plan-%s", payload.PlanID)
	}
	return d.enqueue(payload.DeliveryID, payload.Type, payload)
}

// Sunrise queues a sunrise delivery.
func (d *Dispatcher) Sunrise(payload SunrisePayload) error {
	payload.Type = EventSunrise
	if payload.At.IsZero() {
		payload.At = time.Now().UTC()
	}
	if payload.DeliveryID == "" {
		payload.DeliveryID = fmt.Sprintf("sunrise-%d", payload.Gameday)
	}
	return d.enqueue(payload.DeliveryID, payload.Type, payload)
}

// enqueue never blocks. With an outbox the delivery is stored first, so a
// full queue only delays it until the next start.
func (d *Dispatcher) enqueue(id string, eventType EventType, body interface{}) error {
	if d == nil {
		return errors.New("webhook: dispatcher not initialised")
	}
	if d.ctx.Err() != nil {
		return ErrDispatcherClosed
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	job := delivery{id: id, eventType: eventType, body: data}
	if d.outbox != nil {
		added, err := d.outbox.put(job)
		if err != nil {
			return fmt.Errorf("webhook: persist delivery %s: %w", id, err)
		}
		if !added {
			return nil
		}
	}
	select {
	case d.queue <- job:
		return nil
	default:
		if d.outbox != nil {
			return fmt.Errorf("%w: %s kept in outbox", ErrQueueFull, id)
		}
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, id)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	d.replay()
	for {
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) replay() {
	if d.outbox == nil {
		return
	}
	jobs, err := d.outbox.pending()
	if err != nil {
		d.logger.Warn("webhook outbox replay", slog.Any("error", err))
		return
	}
	if len(jobs) > 0 {
		d.logger.Info("replaying webhook outbox", slog.Int("deliveries", len(jobs)))
	}
	for _, job := range jobs {
		if d.ctx.Err() != nil {
			return
		}
		d.process(job)
	}
}

func (d *Dispatcher) process(job delivery) {
	backoff := d.minBackoff
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(d.ctx, d.client.Timeout)
		err := d.send(ctx, job)
		cancel()
		if err == nil {
			d.forget(job)
			return
		}
		if attempt >= d.maxAttempts {
			d.logger.Warn("webhook delivery abandoned",
				slog.String("event", string(job.eventType)),
				slog.String("delivery", job.id),
				slog.Int("attempts", attempt),
				slog.Any("error", err))
			d.forget(job)
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

// forget drops a finished delivery from the outbox.
func (d *Dispatcher) forget(job delivery) {
	if d.outbox == nil {
		return
	}
	if err := d.outbox.delete(job.id); err != nil {
		d.logger.Warn("webhook outbox delete", slog.String("delivery", job.id), slog.Any("error", err))
	}
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Silo-Event", string(job.eventType))
	req.Header.Set("X-Silo-Signature", Sign(d.secret, job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next < current {
		return max
	}
	return next
}
