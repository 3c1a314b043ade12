// Package catalog talks to a remote map catalog: a JSON listing of maps with
// their online attributes and download links.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/models"
)

// DefaultMaxDownload caps a single map download.
const DefaultMaxDownload = 64 << 20

var ErrTooLarge = errors.New("download exceeds size limit")

// Candidate is one catalog entry.
type Candidate struct {
	ID          string  `json:"id" validate:"required"`
	Title       string  `json:"title"`
	DownloadURL string  `json:"download_url" validate:"omitempty,url"`
	StarRating  float64 `json:"star_rating" validate:"gte=0"`
	Status      string  `json:"status" validate:"omitempty,oneof=UNRANKED RANKED APPROVED"`
}

// OnlineStatus returns the parsed status, UNRANKED when empty.
func (c Candidate) OnlineStatus() models.OnlineStatus {
	s, _ := models.ParseOnlineStatus(c.Status)
	return s
}

type Client struct {
	BaseURL     string
	HTTP        *http.Client
	MaxDownload int64

	validate *validator.Validate
	log      logger.Interface
}

func NewClient(baseURL string, log logger.Interface) *Client {
	if log == nil {
		log = logger.GetLogger().Named("catalog")
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		MaxDownload: DefaultMaxDownload,
		validate:    validator.New(),
		log:         log,
	}
}

// List fetches the catalog. Entries that fail validation are dropped with a
// warning.
func (c *Client) List(ctx context.Context) ([]Candidate, error) {
	body, err := c.get(ctx, c.BaseURL+"/maps", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}

	var raw []Candidate
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	out := make([]Candidate, 0, len(raw))
	for _, cand := range raw {
		cand.Status = strings.ToUpper(strings.TrimSpace(cand.Status))
		if err := c.validate.Struct(cand); err != nil {
			c.log.Warnf("Dropping catalog entry %q: %v", cand.ID, err)
			continue
		}
		out = append(out, cand)
	}
	c.log.Infof("Catalog lists %d maps (%d dropped)", len(out), len(raw)-len(out))
	return out, nil
}

// Download fetches one map binary, at most MaxDownload bytes.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	limit := c.MaxDownload
	if limit <= 0 {
		limit = DefaultMaxDownload
	}
	data, err := c.get(ctx, url, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var r io.Reader = resp.Body
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
