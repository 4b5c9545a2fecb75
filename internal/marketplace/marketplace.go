// Package marketplace implements the Skill Evolution Manager's marketplace
// collaborator against an HTTP skill index. No library in the corpus wraps
// a generic JSON REST client, so this uses net/http directly.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skillcore/skillcore/internal/evolution"
)

// HTTPMarketplace searches a remote skill index over HTTP, expecting a JSON
// object whose "skills" field is an array of skill metadata at
// GET {baseURL}/search?q=...&limit=....
type HTTPMarketplace struct {
	baseURL string
	client  *http.Client
}

// NewHTTPMarketplace builds a client against baseURL.
func NewHTTPMarketplace(baseURL string) *HTTPMarketplace {
	return &HTTPMarketplace{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type searchResponse struct {
	Skills []evolution.SkillMetadata `json:"skills"`
}

// Search queries the remote index for up to limit candidates matching query.
func (m *HTTPMarketplace) Search(ctx context.Context, query string, limit int) ([]evolution.SkillMetadata, error) {
	endpoint, err := url.Parse(m.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse marketplace url: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build marketplace request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketplace search returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode marketplace response: %w", err)
	}
	return decoded.Skills, nil
}
