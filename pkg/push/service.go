// Package push implements the Push Notifier (§4.6): best-effort webhook
// delivery of a Task's current status, retried with exponential backoff
// and never allowed to block the Task Engine that triggers it.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/syedsany6/a2a-runtime/pkg/a2a"
	"github.com/syedsany6/a2a-runtime/pkg/errors"
)

// Service delivers push notifications over HTTP. It satisfies
// engine.Notifier without importing pkg/engine, matching that package's
// decision to depend on the Notifier interface rather than a concrete type.
type Service struct {
	client  *http.Client
	limiter *rate.Limiter
	retry   *errors.RetryConfig
}

// NewService builds a Service with the §4.6 retry policy (5 attempts,
// 250ms doubling capped at 30s) and a conservative outbound rate limit so
// a misbehaving webhook target can't be hammered by retries.
func NewService() *Service {
	return &Service{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		retry:   errors.DefaultRetryConfig(),
	}
}

// Notify delivers task's current status to config asynchronously — the
// Engine must never block on webhook delivery.
func (s *Service) Notify(ctx context.Context, task *a2a.Task, config a2a.PushNotificationConfig) {
	go s.deliver(context.WithoutCancel(ctx), task, config)
}

func (s *Service) deliver(ctx context.Context, task *a2a.Task, config a2a.PushNotificationConfig) {
	event := a2a.TaskStatusUpdateEvent{
		ID:     task.ID,
		Status: task.Status,
		Final:  task.Status.State.IsTerminal(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Error("push: failed to marshal event", "taskId", task.ID, "error", err)
		return
	}

	err = errors.RetryWithBackoff(s.retry, func() error {
		return s.send(ctx, config, body)
	})
	if err != nil {
		log.Error("push: delivery exhausted retries", "taskId", task.ID, "url", config.URL, "error", err)
		return
	}

	log.Debug("push: delivered", "taskId", task.ID, "url", config.URL)
}

func (s *Service) send(ctx context.Context, config a2a.PushNotificationConfig, body []byte) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("push: rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuthorization(req, config)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("push: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// setAuthorization prefers an explicit AgentAuthentication scheme (Bearer
// is the only one the wire format carries credentials for) and falls back
// to the task-scoped bearer token, matching the teacher's
// SendNotification precedence.
func setAuthorization(req *http.Request, config a2a.PushNotificationConfig) {
	if config.Authentication != nil {
		for _, scheme := range config.Authentication.Schemes {
			if scheme == "Bearer" && config.Authentication.Credentials != nil {
				req.Header.Set("Authorization", "Bearer "+*config.Authentication.Credentials)
				return
			}
		}
	}
	if config.Token != nil {
		req.Header.Set("Authorization", "Bearer "+*config.Token)
	}
}
