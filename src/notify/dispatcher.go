// Package notify delivers run summaries as ntfy-style HTTP pushes. Delivery
// is strictly best-effort: failures are logged and retried within bounds but
// never surface into the result of a backup or update run.
package notify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"compose-manager/src/config"
)

const (
	maxAttempts  = 3
	retryDelay   = 2 * time.Second
	fallbackName = "Compose Manager"
)

// Dispatcher posts notifications to the configured ntfy topic.
type Dispatcher struct {
	cfg    config.NotificationsConfig
	logger logrus.FieldLogger
	client *http.Client

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewDispatcher(cfg config.NotificationsConfig, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
		sleep:  time.Sleep,
	}
}

// Enabled reports whether notifications are configured on.
func (d *Dispatcher) Enabled() bool {
	return d.cfg.Enabled
}

// Send delivers one notification. No-op when disabled. Transient failures
// (connection errors, timeouts) are retried up to 3 total attempts with a
// fixed delay; an HTTP error status is not retried. All failures end here,
// in the log.
func (d *Dispatcher) Send(title, body, priority, tags string) {
	if !d.cfg.Enabled {
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := d.post(title, body, priority, tags)
		if err == nil {
			d.logger.WithField("title", title).Info("Notification sent")
			return
		}

		var statusErr *httpStatusError
		if errors.As(err, &statusErr) {
			d.logger.WithError(err).Error("Failed to send notification")
			return
		}

		if attempt < maxAttempts {
			d.logger.WithError(err).Warnf("Notification attempt %d failed, retrying", attempt)
			d.sleep(retryDelay)
			continue
		}
		d.logger.WithError(err).Error("Failed to send notification")
	}
}

type httpStatusError struct {
	status string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("notification rejected: %s", e.status)
}

func (d *Dispatcher) post(title, body, priority, tags string) error {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(d.cfg.Ntfy.Server, "/"), d.cfg.Ntfy.Topic)

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build notification request")
	}

	// Headers must be ASCII; the body keeps its full unicode.
	cleanTitle := strings.TrimSpace(asciiOnly(title))
	if cleanTitle == "" {
		cleanTitle = fallbackName
	}
	req.Header.Set("Title", cleanTitle)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", tags)
	if d.cfg.Ntfy.Username != "" {
		req.SetBasicAuth(d.cfg.Ntfy.Username, d.cfg.Ntfy.Password)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &httpStatusError{status: resp.Status}
	}
	return nil
}

func asciiOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
