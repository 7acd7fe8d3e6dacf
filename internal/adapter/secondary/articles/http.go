// Package articles implements domain.ArticleSource over the news API and
// over a local JSON snapshot.
package articles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"pulse-voice/internal/domain"
)

// HTTPSource fetches article batches from the news server.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPSource creates a source rooted at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration) (*HTTPSource, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "articles: parsing base url %q failed", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("articles: unsupported scheme %q", u.Scheme)
	}
	return &HTTPSource{base: u, client: &http.Client{Timeout: timeout}}, nil
}

// Fetch requests /get_news?topic=<topic>.
func (s *HTTPSource) Fetch(ctx context.Context, topic string) (domain.ArticleBatch, error) {
	var batch domain.ArticleBatch
	if err := s.get(ctx, "/get_news", url.Values{"topic": {topic}}, &batch); err != nil {
		return domain.ArticleBatch{}, err
	}
	batch.Topic = topic
	if batch.Count == 0 {
		batch.Count = len(batch.Articles)
	}
	return batch, nil
}

type topicsResponse struct {
	Success bool     `json:"success"`
	Topics  []string `json:"topics"`
}

// Topics requests /topics.
func (s *HTTPSource) Topics(ctx context.Context) ([]string, error) {
	var resp topicsResponse
	if err := s.get(ctx, "/topics", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, nil
	}
	return resp.Topics, nil
}

func (s *HTTPSource) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := *s.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "articles: creating request failed")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "articles: requesting %s failed", u.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, URL: u.String()}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "articles: decoding %s failed", u.Path)
	}
	return nil
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("articles: %s returned HTTP %d", e.URL, e.StatusCode)
}
