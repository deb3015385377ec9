package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stickerverse/figmacionvert-v3-sub010/httpsafe"
)

// Descriptor is a job offered by an upstream capture feed.
type Descriptor struct {
	ID       string          `json:"id"`
	URL      string          `json:"url"`
	Viewport Viewport        `json:"viewport"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// UpstreamConfig configures the upstream feed client.
type UpstreamConfig struct {
	// BaseURL is the feed root, e.g. "https://captures.example.com/api".
	BaseURL string
	// Token authenticates against the feed (Bearer). Optional.
	Token string
	// Timeout is the per-request HTTP timeout. Default: 30s.
	Timeout time.Duration
	// MaxBody caps descriptor response reads. Payloads can be large;
	// default: 64 MiB.
	MaxBody int64
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator vets the base URL and every redirect target.
	// Default: httpsafe.ValidateURL.
	URLValidator func(string) error
}

func (c *UpstreamConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBody <= 0 {
		c.MaxBody = 64 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "figmaconvert/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = httpsafe.ValidateURL
	}
}

// Upstream polls a remote feed for capture jobs and reports results back.
// It lets a fleet of converters sit behind a central capture service
// without exposing their own ingress.
type Upstream struct {
	cfg    UpstreamConfig
	client *http.Client
}

// NewUpstream validates the feed URL and returns a client.
func NewUpstream(cfg UpstreamConfig) (*Upstream, error) {
	cfg.defaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := cfg.URLValidator(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("jobs: upstream url: %w", err)
	}
	validate := cfg.URLValidator
	return &Upstream{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
	}, nil
}

// Next asks the feed for one job. Returns nil, nil when the feed is empty
// (HTTP 204).
func (u *Upstream) Next(ctx context.Context) (*Descriptor, error) {
	resp, err := u.do(ctx, http.MethodGet, "/jobs/next", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("jobs: upstream next: status %d", resp.StatusCode)
	}

	data, err := httpsafe.LimitedReadAll(resp.Body, u.cfg.MaxBody)
	if err != nil {
		return nil, fmt.Errorf("jobs: upstream next: %w", err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("jobs: upstream next: decode: %w", err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("jobs: upstream next: descriptor without id")
	}
	if err := httpsafe.ValidateIdentifier(d.ID); err != nil {
		return nil, fmt.Errorf("jobs: upstream next: %w", err)
	}
	return &d, nil
}

// Submit reports a prepared result for a job back to the feed.
func (u *Upstream) Submit(ctx context.Context, id string, result []byte) error {
	if err := httpsafe.ValidateIdentifier(id); err != nil {
		return fmt.Errorf("jobs: submit: %w", err)
	}
	resp, err := u.do(ctx, http.MethodPost, "/jobs/"+id+"/result", result)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("jobs: submit %s: status %d", id, resp.StatusCode)
	}
	return nil
}

// Health checks feed reachability.
func (u *Upstream) Health(ctx context.Context) error {
	resp, err := u.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jobs: upstream unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (u *Upstream) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("jobs: upstream request: %w", err)
	}
	req.Header.Set("User-Agent", u.cfg.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if u.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.cfg.Token)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jobs: upstream %s %s: %w", method, path, err)
	}
	return resp, nil
}

// Pull transfers jobs from the feed into the local queue until the feed
// runs dry or ctx expires. Returns the number of jobs enqueued.
func (u *Upstream) Pull(ctx context.Context, q *Queue) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		d, err := u.Next(ctx)
		if err != nil {
			return n, err
		}
		if d == nil {
			return n, nil
		}
		if _, err := q.EnqueueFrom(ctx, d.ID, d.URL, d.Viewport, d.Payload); err != nil {
			return n, fmt.Errorf("jobs: pull %s: %w", d.ID, err)
		}
		n++
	}
}

// Push delivers completed feed jobs back upstream and marks them submitted.
// Returns the number of results delivered. A submit failure stops the
// sweep; undelivered jobs stay queued for the next call.
func (u *Upstream) Push(ctx context.Context, q *Queue) (int, error) {
	n := 0
	for {
		batch, err := q.Unsubmitted(ctx, 16)
		if err != nil || len(batch) == 0 {
			return n, err
		}
		for _, d := range batch {
			if err := u.Submit(ctx, d.Origin, d.Result); err != nil {
				return n, err
			}
			if err := q.MarkSubmitted(ctx, d.ID); err != nil {
				return n, err
			}
			n++
		}
	}
}
