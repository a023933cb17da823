package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"habit-quest-system/services"

	"golang.org/x/sync/errgroup"
)

// StravaSyncClient pulls normalized activities from the provider integration
// service. It is the fallback path for users whose webhooks are delayed or
// dropped; ingestion is idempotent so overlap with pushed events is fine.
type StravaSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewStravaSyncClient(baseURL, token string) *StravaSyncClient {
	return &StravaSyncClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// UserActivities is one user's batch of normalized activities since the
// watermark.
type UserActivities struct {
	UserID     string                      `json:"user_id"`
	Activities []services.ExternalActivity `json:"activities"`
}

func (c *StravaSyncClient) GetChangedActivities(ctx context.Context, since time.Time) ([]UserActivities, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/activities", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call provider sync service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("provider sync service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Users []UserActivities `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode provider sync response: %w", err)
	}

	return response.Users, nil
}

// PollProviderActivities polls the provider feed and funnels every batch into
// the ingest service. The watermark only advances after a fully successful
// tick so a failed poll retries the same window.
func PollProviderActivities(ctx context.Context, client *StravaSyncClient, stravaService *services.StravaService, pollInterval time.Duration) {
	log.Println("Starting provider activity polling...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Provider activity polling stopped.")
			return
		case <-ticker.C:
			tickTime := time.Now().UTC()

			batches, err := client.GetChangedActivities(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling provider activities: %v", err)
				continue
			}
			if len(batches) == 0 {
				continue
			}
			log.Printf("📥 Received activity batches for %d user(s) from provider sync.", len(batches))

			g, _ := errgroup.WithContext(ctx)
			g.SetLimit(4)
			for _, batch := range batches {
				batch := batch
				g.Go(func() error {
					stravaService.IngestBatch(batch.UserID, batch.Activities)
					return nil
				})
			}
			_ = g.Wait()

			lastSyncTime = tickTime
		}
	}
}
