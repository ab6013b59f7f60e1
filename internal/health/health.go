package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CheckService fetches the guide service's channel index URL. Returns
// nil if OK, error with message if not.
func CheckService(ctx context.Context, indexURL string) error {
	if indexURL == "" {
		return fmt.Errorf("no service URL configured")
	}
	// Some mirrors don't support HEAD; use GET and close body immediately.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("service unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned HTTP %d", resp.StatusCode)
	}
	return nil
}
