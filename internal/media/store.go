package media

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Store deletes stored blobs by reference. Upload and transcoding live in the
// media service; this side only cleans up after room and account deletion.
type Store interface {
	Delete(ctx context.Context, ref string) error
}

// HTTPStore deletes blobs through the media service's REST API.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore builds a Store against the media service at baseURL.
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPStore) Delete(ctx context.Context, ref string) error {
	endpoint := fmt.Sprintf("%s/media/%s", s.baseURL, url.PathEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// A missing blob counts as deleted.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete media %s: status %d", ref, resp.StatusCode)
	}
	return nil
}

// NoopStore is used when no media service is configured.
type NoopStore struct{}

func (NoopStore) Delete(ctx context.Context, ref string) error {
	log.Printf("media noop delete ref=%s", ref)
	return nil
}
