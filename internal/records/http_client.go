package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type httpClient struct {
	cfg           Config
	client        *http.Client
	lastRequest   time.Time
	throttleMutex sync.Mutex

	// Session Cache
	cache      map[string]*cacheEntry
	cacheMutex sync.Mutex
}

type cacheEntry struct {
	Value       any
	Expiration  time.Time
	AccessCount int
	OriginalTTL time.Duration
}

func newHTTPClient(cfg Config) *httpClient {
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = 200 * time.Millisecond
	}
	return &httpClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		cache: make(map[string]*cacheEntry),
	}
}

func (c *httpClient) getFromCache(key string) (any, bool) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		log.Debug().Str("key", key).Msg("Cache miss")
		return nil, false
	}
	log.Debug().Str("key", key).Msg("Cache hit")

	if time.Now().After(entry.Expiration) {
		delete(c.cache, key)
		return nil, false
	}

	// Sliding window extension
	if entry.AccessCount < 6 {
		entry.Expiration = time.Now().Add(entry.OriginalTTL)
		entry.AccessCount++
		log.Trace().Str("key", key).Int("count", entry.AccessCount).Msg("Extended cache TTL")
	}

	return entry.Value, true
}

func (c *httpClient) addToCache(key string, value any, ttl time.Duration) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	c.cache[key] = &cacheEntry{
		Value:       value,
		Expiration:  time.Now().Add(ttl),
		OriginalTTL: ttl,
		AccessCount: 1,
	}
	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Added to cache")
}

// invalidate drops any cached listing for a table after a write so reads
// observe the mutation.
func (c *httpClient) invalidate(table string) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()
	delete(c.cache, "list:"+table)
}

func (c *httpClient) throttle(isWrite bool) {
	c.throttleMutex.Lock()
	defer c.throttleMutex.Unlock()

	// Writes go straight through: panel saves are user-initiated and must not
	// queue behind listing traffic.
	if isWrite {
		c.lastRequest = time.Now()
		return
	}

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Debug().Dur("wait", wait).Msg("Throttling record backend request")
		time.Sleep(wait)
	}
	c.lastRequest = time.Now()
}

func (c *httpClient) authenticate(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

func (c *httpClient) tableURL(table string) string {
	return fmt.Sprintf("%s/v0/%s/%s", c.cfg.BaseURL, c.cfg.Workspace, url.PathEscape(table))
}

func statusError(code int, what string) error {
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%s not found", what)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("record backend authentication failed (401/403), please check the API key")
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("record backend rejected the payload for %s (422)", what)
	case http.StatusTooManyRequests:
		return fmt.Errorf("record backend rate limit exceeded (429)")
	default:
		return fmt.Errorf("record backend returned status %d for %s", code, what)
	}
}

func (c *httpClient) ListRecords(ctx context.Context, table string) ([]Record, error) {
	cacheKey := "list:" + table
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.([]Record), nil
	}

	var all []Record
	offset := ""
	for {
		c.throttle(false)

		params := url.Values{}
		params.Set("pageSize", "100")
		if offset != "" {
			params.Set("offset", offset)
		}

		listURL := c.tableURL(table) + "?" + params.Encode()
		log.Debug().Str("url", listURL).Msg("Listing records")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
		if err != nil {
			return nil, err
		}
		c.authenticate(req)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, statusError(resp.StatusCode, "table "+table)
		}

		var page listResponse
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to decode record listing: %w", err)
		}
		resp.Body.Close()

		for _, dto := range page.Records {
			all = append(all, mapRecord(dto))
		}

		if page.Offset == "" {
			break
		}
		offset = page.Offset
	}

	c.addToCache(cacheKey, all, 2*time.Minute)
	return all, nil
}

func (c *httpClient) GetRecord(ctx context.Context, table, id string) (*Record, error) {
	c.throttle(false)

	getURL := c.tableURL(table) + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return nil, err
	}
	c.authenticate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, fmt.Sprintf("record %s/%s", table, id))
	}

	var dto recordDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("failed to decode record response: %w", err)
	}

	rec := mapRecord(dto)
	return &rec, nil
}

func (c *httpClient) CreateRecord(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	rec, err := c.submitRecord(ctx, http.MethodPost, c.tableURL(table), fields, "table "+table)
	if err != nil {
		return nil, err
	}
	c.invalidate(table)
	return rec, nil
}

func (c *httpClient) UpdateRecordFields(ctx context.Context, table, id string, fields map[string]any) (*Record, error) {
	updateURL := c.tableURL(table) + "/" + url.PathEscape(id)
	rec, err := c.submitRecord(ctx, http.MethodPatch, updateURL, fields, fmt.Sprintf("record %s/%s", table, id))
	if err != nil {
		return nil, err
	}
	c.invalidate(table)
	return rec, nil
}

func (c *httpClient) submitRecord(ctx context.Context, method, reqURL string, fields map[string]any, what string) (*Record, error) {
	c.throttle(true)

	body, err := json.Marshal(updateRequest{Fields: fields})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authenticate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError(resp.StatusCode, what)
	}

	var dto recordDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("failed to decode record response: %w", err)
	}

	rec := mapRecord(dto)
	return &rec, nil
}

func (c *httpClient) UploadAttachment(ctx context.Context, filename string, data []byte) (*Attachment, error) {
	c.throttle(true)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	uploadURL := fmt.Sprintf("%s/v0/%s/attachments", c.cfg.BaseURL, c.cfg.Workspace)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authenticate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError(resp.StatusCode, "attachment upload")
	}

	var dto attachmentDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("failed to decode attachment response: %w", err)
	}

	return &Attachment{ID: dto.ID, URL: dto.URL, Filename: dto.Filename}, nil
}

func (c *httpClient) DeleteAttachment(ctx context.Context, table, recordID, field, attachmentID string) error {
	c.throttle(true)

	deleteURL := fmt.Sprintf("%s/v0/%s/attachments/%s", c.cfg.BaseURL, c.cfg.Workspace, url.PathEscape(attachmentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return err
	}
	c.authenticate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError(resp.StatusCode, "attachment "+attachmentID)
	}

	// Clear the referencing field so the record no longer points at a deleted object.
	if table != "" && recordID != "" && field != "" {
		if _, err := c.UpdateRecordFields(ctx, table, recordID, map[string]any{field: nil}); err != nil {
			return fmt.Errorf("attachment deleted but field %q not cleared: %w", field, err)
		}
	}

	return nil
}

// ResolveLookups fetches the auxiliary tables in parallel and builds
// id -> display name maps for linked-record resolution.
func (c *httpClient) ResolveLookups(ctx context.Context) (*Lookups, error) {
	lookups := &Lookups{}

	targets := []struct {
		table string
		dest  *map[string]string
	}{
		{TableOwners, &lookups.Owners},
		{TableMarkets, &lookups.Markets},
		{TablePages, &lookups.Pages},
		{TableProducts, &lookups.Products},
		{TableKPIs, &lookups.KPIs},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		g.Go(func() error {
			recs, err := c.ListRecords(gctx, target.table)
			if err != nil {
				return fmt.Errorf("failed to resolve %s lookup: %w", target.table, err)
			}
			names := make(map[string]string, len(recs))
			for _, rec := range recs {
				if name, ok := rec.Fields["Name"].(string); ok {
					names[rec.ID] = name
				}
			}
			*target.dest = names
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().
		Int("owners", len(lookups.Owners)).
		Int("markets", len(lookups.Markets)).
		Msg("Resolved linked-record lookups")
	return lookups, nil
}
