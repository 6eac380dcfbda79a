// Package remote talks to the hosted contacts database. It handles transport,
// pagination and retries; shape translation is delegated to schema.Mapper.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mycelian/contacts-service/internal/model"
	"github.com/mycelian/contacts-service/internal/schema"
)

const (
	opQuery   = "query"
	opGet     = "get"
	opCreate  = "create"
	opUpdate  = "update"
	opArchive = "archive"
	opSchema  = "schema"
	opPing    = "ping"

	// MaxPageSize is the largest page the store will return.
	MaxPageSize = 100
)

// Config holds connection and retry settings.
type Config struct {
	BaseURL        string
	APIKey         string
	DatabaseID     string
	APIVersion     string
	Timeout        time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	// PageDelay is the minimum spacing between page fetches.
	PageDelay time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	cfg       Config
	http      *resty.Client
	mapper    *schema.Mapper
	pacer     *rate.Limiter
	log       zerolog.Logger
	now       func() time.Time
	debug     bool
	transport http.RoundTripper
}

// New builds a client for cfg.
func New(cfg Config, mapper *schema.Mapper, opts ...Option) (*Client, error) {
	switch {
	case cfg.BaseURL == "":
		return nil, fmt.Errorf("remote: base URL is required")
	case cfg.APIKey == "":
		return nil, fmt.Errorf("remote: API key is required")
	case cfg.DatabaseID == "":
		return nil, fmt.Errorf("remote: database id is required")
	case mapper == nil:
		return nil, fmt.Errorf("remote: mapper is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		cfg:       cfg,
		mapper:    mapper,
		log:       zerolog.Nop(),
		now:       time.Now,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	limit := rate.Inf
	if cfg.PageDelay > 0 {
		limit = rate.Every(cfg.PageDelay)
	}
	c.pacer = rate.NewLimiter(limit, 1)

	rt := c.transport
	if c.debug {
		rt = &debugTransport{base: rt, log: c.log}
	}
	c.http = resty.New().
		SetTransport(rt).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Notion-Version", cfg.APIVersion).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	return c, nil
}

type page struct {
	Object         string      `json:"object"`
	ID             string      `json:"id"`
	CreatedTime    string      `json:"created_time"`
	LastEditedTime string      `json:"last_edited_time"`
	Archived       bool        `json:"archived"`
	Properties     *schema.Bag `json:"properties"`
}

type queryRequest struct {
	PageSize    int    `json:"page_size"`
	StartCursor string `json:"start_cursor,omitempty"`
}

type queryResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor *string           `json:"next_cursor"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type createRequest struct {
	Parent     parent      `json:"parent"`
	Properties *schema.Bag `json:"properties"`
}

type updateRequest struct {
	Properties *schema.Bag `json:"properties,omitempty"`
	Archived   *bool       `json:"archived,omitempty"`
}

type databaseResponse struct {
	ID         string      `json:"id"`
	Properties *schema.Bag `json:"properties"`
}

// do sends one request and decodes a successful body into out.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		requestsTotal.WithLabelValues(op, "network_error").Inc()
		return newNetworkError(op, err)
	}
	if resp.IsError() {
		requestsTotal.WithLabelValues(op, "http_error").Inc()
		return newHTTPError(op, resp.StatusCode(), resp.Body())
	}
	requestsTotal.WithLabelValues(op, "ok").Inc()
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &RemoteError{Op: op, Category: Permanent, StatusCode: resp.StatusCode(), Message: "malformed response body", Underlying: err}
	}
	return nil
}

func (c *Client) databasePath(suffix string) string {
	return "/v1/databases/" + url.PathEscape(c.cfg.DatabaseID) + suffix
}

func pagePath(id string) string {
	return "/v1/pages/" + url.PathEscape(id)
}

// FetchAll pages through the whole database. Each page is retried on
// transient failure; a permanent failure aborts the fetch. Records that cannot
// be translated are logged and left out.
func (c *Client) FetchAll(ctx context.Context, pageSize int) ([]model.Contact, error) {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	var (
		out    []model.Contact
		cursor string
		index  int
	)
	for {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		var resp queryResponse
		req := queryRequest{PageSize: pageSize, StartCursor: cursor}
		err := c.retry(ctx, opQuery, func() error {
			resp = queryResponse{}
			return c.do(ctx, opQuery, http.MethodPost, c.databasePath("/query"), req, &resp)
		})
		if err != nil {
			return nil, fmt.Errorf("fetch all: %w", err)
		}

		for _, raw := range resp.Results {
			p, err := decodePage(raw)
			if err != nil {
				terr := &TranslationError{Index: index, Err: err}
				var head struct {
					ID string `json:"id"`
				}
				if json.Unmarshal(raw, &head) == nil {
					terr.ID = head.ID
				}
				skippedRecordsTotal.Inc()
				c.log.Warn().Err(terr).Int("index", index).Msg("skipping record that could not be translated")
			} else if !p.Archived {
				out = append(out, c.toContact(p))
			}
			index++
		}

		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		cursor = *resp.NextCursor
	}
	c.log.Debug().Int("records", len(out)).Int("seen", index).Msg("fetched all records")
	return out, nil
}

func decodePage(raw json.RawMessage) (page, error) {
	var p page
	if err := json.Unmarshal(raw, &p); err != nil {
		return page{}, err
	}
	if p.ID == "" {
		return page{}, errors.New("record has no id")
	}
	return p, nil
}

func (c *Client) toContact(p page) model.Contact {
	return c.mapper.ToCanonical(p.Properties, schema.PageMeta{
		ID:             p.ID,
		CreatedTime:    p.CreatedTime,
		LastEditedTime: p.LastEditedTime,
		Archived:       p.Archived,
	})
}

// getPage returns found=false for ids the store does not know or has archived.
func (c *Client) getPage(ctx context.Context, id string) (page, bool, error) {
	var p page
	err := c.retry(ctx, opGet, func() error {
		p = page{}
		return c.do(ctx, opGet, http.MethodGet, pagePath(id), nil, &p)
	})
	switch {
	case errors.Is(err, model.ErrNotFound):
		return page{}, false, nil
	case err != nil:
		return page{}, false, err
	case p.Archived:
		return page{}, false, nil
	}
	return p, true, nil
}

// FetchOne reads a single record. A missing or archived id is reported with
// found=false and a nil error.
func (c *Client) FetchOne(ctx context.Context, id string) (model.Contact, bool, error) {
	if strings.TrimSpace(id) == "" {
		return model.Contact{}, false, nil
	}
	p, found, err := c.getPage(ctx, id)
	if err != nil || !found {
		return model.Contact{}, false, err
	}
	return c.toContact(p), true, nil
}

// Schema returns the database's property definitions. Only the keys and
// declared types are meaningful.
func (c *Client) Schema(ctx context.Context) (*schema.Bag, error) {
	var db databaseResponse
	err := c.retry(ctx, opSchema, func() error {
		db = databaseResponse{}
		return c.do(ctx, opSchema, http.MethodGet, c.databasePath(""), nil, &db)
	})
	if err != nil {
		return nil, err
	}
	if db.Properties == nil {
		return schema.NewBag(), nil
	}
	return db.Properties, nil
}

// Create validates ct, fills defaults, and writes it. The create call itself
// is not retried since it is not idempotent.
func (c *Client) Create(ctx context.Context, ct model.Contact) (model.Contact, error) {
	if err := model.ValidateForCreate(ct); err != nil {
		return model.Contact{}, err
	}
	ct.ID = ""
	if strings.TrimSpace(ct.Status) == "" {
		ct.Status = model.DefaultStatus
	}
	if strings.TrimSpace(ct.CreatedDate) == "" {
		ct.CreatedDate = c.now().Format(time.DateOnly)
	}

	existing, err := c.Schema(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("could not read database schema, using default property names")
		existing = nil
	}

	req := createRequest{
		Parent:     parent{DatabaseID: c.cfg.DatabaseID},
		Properties: c.mapper.ToExternal(ct, existing),
	}
	var p page
	if err := c.do(ctx, opCreate, http.MethodPost, "/v1/pages", req, &p); err != nil {
		return model.Contact{}, err
	}
	return c.toContact(p), nil
}

// Update writes the supplied fields of patch to id. It reads the record first
// so existing property names are reused; an unknown id yields model.ErrNotFound.
func (c *Client) Update(ctx context.Context, id string, patch model.Patch) (model.Contact, error) {
	if patch.IsEmpty() {
		return model.Contact{}, model.NewValidationError("", "no properties to update")
	}
	existing, found, err := c.getPage(ctx, id)
	if err != nil {
		return model.Contact{}, err
	}
	if !found {
		return model.Contact{}, fmt.Errorf("contact %s: %w", id, model.ErrNotFound)
	}

	props := c.mapper.ToExternalPatch(patch, existing.Properties)
	if props.Len() == 0 {
		return model.Contact{}, model.NewValidationError("", "no properties to update")
	}

	var p page
	err = c.retry(ctx, opUpdate, func() error {
		p = page{}
		return c.do(ctx, opUpdate, http.MethodPatch, pagePath(id), updateRequest{Properties: props}, &p)
	})
	if errors.Is(err, model.ErrNotFound) {
		return model.Contact{}, fmt.Errorf("contact %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Contact{}, err
	}
	return c.toContact(p), nil
}

// Archive soft-deletes id. The store keeps the record's history; the id is
// never reused.
func (c *Client) Archive(ctx context.Context, id string) error {
	archived := true
	err := c.retry(ctx, opArchive, func() error {
		return c.do(ctx, opArchive, http.MethodPatch, pagePath(id), updateRequest{Archived: &archived}, nil)
	})
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("contact %s: %w", id, model.ErrNotFound)
	}
	return err
}

// HealthPing issues a one-record query without retries.
func (c *Client) HealthPing(ctx context.Context) error {
	return c.do(ctx, opPing, http.MethodPost, c.databasePath("/query"), queryRequest{PageSize: 1}, nil)
}
