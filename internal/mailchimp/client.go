package mailchimp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ignite/audience-sync/internal/config"
	"github.com/ignite/audience-sync/internal/pkg/httpclient"
	"github.com/ignite/audience-sync/internal/pkg/logger"
)

var (
	// ErrUnauthorized means the API key was rejected
	ErrUnauthorized = errors.New("mailchimp: API key rejected")
	// ErrListNotFound means the list id does not resolve
	ErrListNotFound = errors.New("mailchimp: list not found")
)

// memberFields trims the members payload to what the sync reads
const memberFields = "members.id,members.email_address,members.status,members.timestamp_opt,list_id,total_items"

// Client is a Mailchimp Marketing API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpclient.HTTPDoer
	pageDelay  time.Duration
	pause      httpclient.PauseFunc
	log        *logger.Logger
}

// NewClient creates a new Mailchimp API client
func NewClient(cfg config.MailchimpConfig) *Client {
	return &Client{
		baseURL:    cfg.Endpoint(),
		apiKey:     cfg.APIKey,
		httpClient: httpclient.New(cfg.Timeout()),
		pageDelay:  cfg.PageDelay(),
		pause:      httpclient.Pause,
		log:        logger.Default(),
	}
}

// WithHTTPClient swaps the transport
func (c *Client) WithHTTPClient(doer httpclient.HTTPDoer) *Client {
	c.httpClient = doer
	return c
}

// WithPause swaps the pacing function used between full pages
func (c *Client) WithPause(pause httpclient.PauseFunc) *Client {
	c.pause = pause
	return c
}

// WithLogger sets the logger used for per-page diagnostics
func (c *Client) WithLogger(l *logger.Logger) *Client {
	c.log = l
	return c
}

// doGet makes a GET request with Basic Auth; Mailchimp ignores the username
func (c *Client) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth("anystring", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	return httpclient.ReadResponse("Mailchimp", resp, problemMessage)
}

func problemMessage(body []byte) string {
	var p Problem
	if err := json.Unmarshal(body, &p); err != nil {
		return ""
	}
	switch {
	case p.Title != "" && p.Detail != "":
		return p.Title + ": " + p.Detail
	case p.Detail != "":
		return p.Detail
	default:
		return p.Title
	}
}

// Ping checks connectivity and the API key
func (c *Client) Ping(ctx context.Context) error {
	body, err := c.doGet(ctx, "/ping", nil)
	if err != nil {
		if httpclient.IsUnauthorized(err) {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return fmt.Errorf("pinging mailchimp: %w", err)
	}

	var resp PingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parsing ping response: %w", err)
	}
	return nil
}

// GetListMembers fetches one page of members of a list
func (c *Client) GetListMembers(ctx context.Context, listID, status string, count, offset int) (*MembersResponse, error) {
	params := url.Values{}
	params.Set("count", strconv.Itoa(count))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("fields", memberFields)
	if status != "" {
		params.Set("status", status)
	}

	path := "/lists/" + url.PathEscape(listID) + "/members"
	body, err := c.doGet(ctx, path, params)
	if err != nil {
		switch {
		case httpclient.IsNotFound(err):
			return nil, fmt.Errorf("%w: %s: %v", ErrListNotFound, listID, err)
		case httpclient.IsUnauthorized(err):
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("fetching members of %s at offset %d: %w", listID, offset, err)
	}

	var response MembersResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing members response: %w", err)
	}

	return &response, nil
}

// ListSubscribers pages through every subscribed member of a list in offset
// order. It stops on an empty page or one shorter than pageSize and pauses
// after each full page. progress, if set, receives the running total after
// every non-empty page. Any error discards what was fetched so far.
func (c *Client) ListSubscribers(ctx context.Context, listID string, pageSize int, progress func(total int)) ([]Member, error) {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	var all []Member
	for offset := 0; ; offset += pageSize {
		page, err := c.GetListMembers(ctx, listID, StatusSubscribed, pageSize, offset)
		if err != nil {
			return nil, err
		}

		if len(page.Members) == 0 {
			break
		}

		all = append(all, page.Members...)
		c.log.Debug("Mailchimp: fetched page", "list_id", listID, "offset", offset, "page_len", len(page.Members), "total", len(all))
		if progress != nil {
			progress(len(all))
		}

		if len(page.Members) < pageSize {
			break
		}

		if err := c.pause(ctx, c.pageDelay); err != nil {
			return nil, err
		}
	}

	return all, nil
}
