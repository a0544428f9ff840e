// Package broadcast fans a single message out to many recipients
// concurrently, with per-recipient timeout, bounded retry with backoff, and a
// delivery report that accounts for every recipient.
//
// Delivery failures are data, not errors: a broadcast never fails as a whole.
// Callers inspect the DeliveryReport to see which recipients missed the
// message.
package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

// Defaults matching the league's delivery policy.
const (
	DefaultTimeout    = 5 * time.Second
	DefaultMaxRetries = 2
)

// Recipient is one delivery target. ID is used for reporting; Endpoint is
// where the message is POSTed. A recipient with no endpoint is recorded as an
// immediate failure, no attempt made.
type Recipient struct {
	ID       string
	Endpoint string
}

// DeliveryReport is the outcome accounting of one broadcast. Successful and
// Failed always sum to Total. A fresh report is built for every call; reports
// are never merged across broadcasts.
type DeliveryReport struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	FailedIDs  []string          `json:"failed_ids,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// Dispatcher delivers messages with the league's retry policy. The zero value
// is not usable; construct with NewDispatcher.
type Dispatcher struct {
	timeout    time.Duration
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) // test seam for backoff
}

// NewDispatcher returns a dispatcher with the given per-request timeout and
// retry budget. Non-positive arguments fall back to the defaults.
func NewDispatcher(timeout time.Duration, maxRetries int) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Dispatcher{
		timeout:    timeout,
		maxRetries: maxRetries,
		sleep:      sleepCtx,
	}
}

// Broadcast delivers message to every recipient concurrently, one goroutine
// per recipient, and returns when every delivery has either succeeded or
// exhausted its attempts.
func (d *Dispatcher) Broadcast(ctx context.Context, recipients []Recipient, message any) *DeliveryReport {
	report := &DeliveryReport{
		Total:  len(recipients),
		Errors: make(map[string]string),
	}
	if len(recipients) == 0 {
		log.Warn("Broadcast requested with no recipients")
		return report
	}

	type outcome struct {
		id  string
		err error
	}
	results := make(chan outcome, len(recipients))

	var wg sync.WaitGroup
	for _, r := range recipients {
		wg.Add(1)
		go func(r Recipient) {
			defer wg.Done()
			results <- outcome{id: r.ID, err: d.SendWithRetry(ctx, r, message)}
		}(r)
	}
	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, res.id)
			report.Errors[res.id] = res.err.Error()
		} else {
			report.Successful++
		}
	}

	log.WithFields(log.Fields{
		"total":      report.Total,
		"successful": report.Successful,
		"failed":     report.Failed,
	}).Info("Broadcast complete")
	return report
}

// SendWithRetry delivers message to a single recipient under the dispatcher's
// policy: up to maxRetries+1 attempts, each bounded by the per-request
// timeout, waiting 0.5s*(attempt+1) between attempts. The last error is
// returned after the budget is exhausted. The referee's result reporting
// shares this path so MATCH_RESULT_REPORT gets the same persistence as
// broadcasts.
func (d *Dispatcher) SendWithRetry(ctx context.Context, r Recipient, message any) error {
	if r.Endpoint == "" {
		return fmt.Errorf("recipient %s has no endpoint", r.ID)
	}

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := protocol.PostJSON(attemptCtx, r.Endpoint, message, nil)
		cancel()
		if err == nil {
			if attempt > 0 {
				log.WithFields(log.Fields{"recipient": r.ID, "attempt": attempt + 1}).
					Info("Delivery succeeded after retry")
			}
			return nil
		}
		lastErr = err
		log.WithFields(log.Fields{
			"recipient": r.ID,
			"attempt":   attempt + 1,
			"error":     err.Error(),
		}).Warn("Delivery attempt failed")

		if attempt < d.maxRetries {
			d.sleep(ctx, time.Duration(attempt+1)*500*time.Millisecond)
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
