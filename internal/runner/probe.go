package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrTargetUnreachable is returned when the target never answered the readiness probe.
var ErrTargetUnreachable = errors.New("target unreachable")

const probeInterval = 250 * time.Millisecond

// Probe polls url until it answers HTTP with any status or timeout elapses. The app
// under test is started elsewhere, so a connection refusal at first is normal.
func Probe(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("probe %s: %w", url, err)
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %s: %v", ErrTargetUnreachable, url, timeout, lastErr)
		case <-ticker.C:
		}
	}
}
