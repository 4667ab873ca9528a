package sefariaapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sefaria/internal/entity"

	"golang.org/x/time/rate"
)

var ErrNotFound = errors.New("not found")

type Client struct {
	httpClient  *http.Client
	userAgent   string
	baseURL     string
	downloadURL string
	token       string
	limiter     *rate.Limiter
	maxRetries  int
}

type Options struct {
	BaseURL     string
	DownloadURL string
	UserAgent   string
	Token       string
	RPS         int
	MaxRetries  int
	Timeout     time.Duration
}

func NewClient(opts Options) *Client {
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.DownloadURL == "" {
		opts.DownloadURL = opts.BaseURL + "/static/ios-export"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		userAgent:   opts.UserAgent,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		downloadURL: strings.TrimRight(opts.DownloadURL, "/"),
		token:       opts.Token,
		limiter:     rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.RPS)), 1),
		maxRetries:  opts.MaxRetries,
	}
}

// RawLink matches the link objects of api/texts (commentary=1) and api/links.
type RawLink struct {
	Ref         string `json:"ref"`
	SourceRef   string `json:"sourceRef"`
	SourceHeRef string `json:"sourceHeRef"`
	AnchorRef   string `json:"anchorRef"`
	Category    string `json:"category"`
	IndexTitle  string `json:"index_title"`
	// CollectiveTitle names the commentator ("Rashi") of commentary links.
	CollectiveTitle struct {
		En string `json:"en"`
		He string `json:"he"`
	} `json:"collectiveTitle"`
}

// Source returns the ref of the linked text.
func (l RawLink) Source() string {
	if l.SourceRef != "" {
		return l.SourceRef
	}
	return l.Ref
}

// TextResponse matches api/texts/{ref}?context=1&commentary=1
type TextResponse struct {
	Ref             string    `json:"ref"`
	HeRef           string    `json:"heRef"`
	SectionRef      string    `json:"sectionRef"`
	Book            string    `json:"book"`
	IndexTitle      string    `json:"indexTitle"`
	Text            []string  `json:"text"`
	He              []string  `json:"he"`
	Commentary      []RawLink `json:"commentary"`
	VersionTitle    string    `json:"versionTitle"`
	HeVersionTitle  string    `json:"heVersionTitle"`
	License         string    `json:"license"`
	VersionSource   string    `json:"versionSource"`
	HeVersionSource string    `json:"heVersionSource"`
	// The API reports unknown refs with 200 and an error message.
	Error string `json:"error,omitempty"`
}

// Manifest matches last_updated.json of the offline export.
type Manifest struct {
	SchemaVersion int                  `json:"schema_version"`
	Titles        map[string]time.Time `json:"titles"`
}

// SyncResponse matches api/profile/sync.
type SyncResponse struct {
	UserHistory []entity.HistoryItem `json:"user_history"`
	LastSync    int64                `json:"last_sync"`
	Settings    *entity.Settings     `json:"settings"`
}

func (c *Client) GetTOC(ctx context.Context) ([]entity.TOCNode, error) {
	var res []entity.TOCNode
	if err := c.get(ctx, c.baseURL+"/api/index", &res, c.maxRetries); err != nil {
		return nil, err
	}
	return res, nil
}

// GetText fetches one section with its links. Retries are left to the caller.
func (c *Client) GetText(ctx context.Context, ref string) (*TextResponse, error) {
	u := fmt.Sprintf("%s/api/texts/%s?context=1&commentary=1", c.baseURL, url.PathEscape(ref))

	var res TextResponse
	if err := c.get(ctx, u, &res, 0); err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%s: %w", res.Error, ErrNotFound)
	}
	return &res, nil
}

// GetLinks fetches the links of a ref without text.
func (c *Client) GetLinks(ctx context.Context, ref string) ([]RawLink, error) {
	u := fmt.Sprintf("%s/api/links/%s?with_text=0", c.baseURL, url.PathEscape(ref))

	var res []RawLink
	if err := c.get(ctx, u, &res, 0); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetManifest(ctx context.Context) (*Manifest, error) {
	var res Manifest
	if err := c.get(ctx, c.downloadURL+"/last_updated.json", &res, c.maxRetries); err != nil {
		return nil, err
	}
	return &res, nil
}

// DownloadArchive streams {title}.zip into dst, reporting progress after
// every chunk. total is -1 when the server sends no Content-Length.
func (c *Client) DownloadArchive(ctx context.Context, title string, dst io.Writer, progress func(received, total int64)) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := fmt.Sprintf("%s/%s.zip", c.downloadURL, url.PathEscape(title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	// Archives can be large; the per-request timeout does not apply.
	client := &http.Client{Transport: c.httpClient.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("archive %s: %w", title, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	pw := &progressWriter{w: dst, total: resp.ContentLength, fn: progress}
	_, err = io.Copy(pw, resp.Body)
	return err
}

type progressWriter struct {
	w        io.Writer
	received int64
	total    int64
	fn       func(received, total int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.received += int64(n)
	if p.fn != nil {
		p.fn(p.received, p.total)
	}
	return n, err
}

// SyncHistory posts the pending history and settings as a form.
func (c *Client) SyncHistory(ctx context.Context, form url.Values) (*SyncResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/profile/sync?no_cache=1", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var res SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, url string, target interface{}, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			// Backoff: 1s, 2s, 4s...
			backoff := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retry, err := c.fetch(ctx, url, target)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	if maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) fetch(ctx context.Context, url string, target interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return false, json.NewDecoder(resp.Body).Decode(target)
	case resp.StatusCode == http.StatusNotFound:
		return false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}
