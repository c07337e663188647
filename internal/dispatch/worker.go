package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/railbird/handreel/internal/config"
)

// claimBatchSize bounds how many due tasks one poll claims.
const claimBatchSize = 32

// Worker polls the scheduled set and delivers due tasks to the internal
// HTTP surface. A task is claimed by removing it from the set; a failed
// delivery is re-scheduled with exponential backoff until the attempt
// limit, so the queue itself is an at-least-once retry layer on top of
// any in-handler retries.
type Worker struct {
	dispatcher   *RedisDispatcher
	baseURL      string
	token        string
	http         *http.Client
	pollInterval time.Duration
	maxAttempts  int
}

// NewWorker creates a Worker sharing the dispatcher's Redis connection.
func NewWorker(d *RedisDispatcher, cfg config.DispatchConfig) *Worker {
	return &Worker{
		dispatcher:   d,
		baseURL:      cfg.BaseURL,
		token:        cfg.InternalToken,
		http:         &http.Client{Timeout: 10 * time.Minute},
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("dispatch worker started", "poll_interval", w.pollInterval.String())
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatch worker stopped")
			return
		case <-ticker.C:
			w.drainDue(ctx)
		}
	}
}

// drainDue claims and delivers every currently due task.
func (w *Worker) drainDue(ctx context.Context) {
	for {
		members, err := w.dispatcher.client.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   fmt.Sprintf("%d", time.Now().UnixMilli()),
			Count: claimBatchSize,
		}).Result()
		if err != nil {
			slog.Error("dispatch poll failed", "error", err)
			return
		}
		if len(members) == 0 {
			return
		}

		for _, member := range members {
			// ZRem is the claim: exactly one competing worker wins.
			removed, err := w.dispatcher.client.ZRem(ctx, scheduledKey, member).Result()
			if err != nil || removed == 0 {
				continue
			}

			var task Task
			if err := json.Unmarshal([]byte(member), &task); err != nil {
				slog.Error("dropping malformed task", "error", err)
				continue
			}
			w.deliver(ctx, task)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, task Task) {
	err := w.post(ctx, task)
	if err == nil {
		return
	}

	task.Attempt++
	if task.Attempt >= w.maxAttempts {
		slog.Error("task dropped after max delivery attempts",
			"task_id", task.ID, "path", task.Path, "attempts", task.Attempt, "error", err)
		return
	}

	backoff := time.Duration(1<<uint(task.Attempt)) * time.Second
	slog.Warn("task delivery failed, rescheduling",
		"task_id", task.ID, "path", task.Path, "attempt", task.Attempt,
		"backoff", backoff.String(), "error", err)
	if err := w.dispatcher.schedule(ctx, task, time.Now().Add(backoff)); err != nil {
		slog.Error("failed to reschedule task", "task_id", task.ID, "error", err)
	}
}

func (w *Worker) post(ctx context.Context, task Task) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.baseURL+task.Path, bytes.NewReader(task.Payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(InternalTokenHeader, w.token)

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("delivering task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("task handler returned status %d", resp.StatusCode)
	}
	return nil
}
