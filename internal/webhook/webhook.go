// Package webhook delivers session events to subscribed HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// Errors returned by Record
var (
	ErrQueueFull = errors.New("webhook delivery queue full")
	ErrClosed    = errors.New("webhook notifier closed")
)

// Endpoint is a subscriber. An empty Events list subscribes to everything.
type Endpoint struct {
	URL    string
	Secret string
	Events []string
}

func (e Endpoint) wants(event string) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, ev := range e.Events {
		if ev == event {
			return true
		}
	}
	return false
}

// Config controls delivery
type Config struct {
	Endpoints   []Endpoint
	Timeout     time.Duration
	RetryDelays []time.Duration
	QueueSize   int
	Workers     int
}

// Payload is the JSON body of every delivery
type Payload struct {
	Event     string               `json:"event"`
	Timestamp time.Time            `json:"timestamp"`
	Data      *models.SessionEvent `json:"data"`
}

type delivery struct {
	id       string
	endpoint Endpoint
	event    string
	payload  []byte
}

// Notifier posts session events to endpoints from a bounded queue
type Notifier struct {
	client *http.Client
	cfg    Config
	logger *logging.Logger

	queue chan delivery
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewNotifier creates a notifier and starts its delivery workers
func NewNotifier(cfg Config, logger *logging.Logger) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryDelays == nil {
		// 1s, 5s, 30s
		cfg.RetryDelays = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if logger == nil {
		logger = logging.Nop()
	}

	n := &Notifier{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger.WithComponent("webhook"),
		queue:  make(chan delivery, cfg.QueueSize),
		done:   make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
	return n
}

// Record queues the event for every endpoint subscribed to its type
func (n *Notifier) Record(ctx context.Context, evt *models.SessionEvent) error {
	payload, err := json.Marshal(Payload{
		Event:     evt.Type,
		Timestamp: time.Now(),
		Data:      evt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}

	for _, ep := range n.cfg.Endpoints {
		if !ep.wants(evt.Type) {
			continue
		}
		d := delivery{id: uuid.New().String(), endpoint: ep, event: evt.Type, payload: payload}
		select {
		case n.queue <- d:
		default:
			metrics.RecordWebhookDelivery("dropped")
			return ErrQueueFull
		}
	}
	return nil
}

// Close stops accepting events and waits for queued deliveries.
// Pending retries are abandoned.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.done)
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
	n.client.CloseIdleConnections()
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for d := range n.queue {
		n.deliver(d)
	}
}

// deliver attempts a delivery, retrying with the configured delays
func (n *Notifier) deliver(d delivery) {
	log := n.logger.WithFields(map[string]interface{}{
		"delivery_id": d.id,
		"event":       d.event,
		"url":         d.endpoint.URL,
	})

	for attempt := 0; ; attempt++ {
		err := n.send(d)
		if err == nil {
			metrics.RecordWebhookDelivery("delivered")
			return
		}

		if attempt >= len(n.cfg.RetryDelays) {
			log.WarnWithErr("Webhook delivery failed", err)
			metrics.RecordWebhookDelivery("failed")
			return
		}

		log.WithError(err).Debugf("Webhook attempt %d failed", attempt+1)
		select {
		case <-n.done:
			metrics.RecordWebhookDelivery("abandoned")
			return
		case <-time.After(n.cfg.RetryDelays[attempt]):
		}
	}
}

func (n *Notifier) send(d delivery) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint.URL, bytes.NewReader(d.payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Ark-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", d.event)
	req.Header.Set("X-Webhook-Delivery", d.id)
	if d.endpoint.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(d.payload, d.endpoint.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the HMAC-SHA256 signature header value for payload
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
