package mirror

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client implements Mirror and ObjectStore over the document-store
// HTTP API. It is constructed once at process start and passed by
// reference; there is no lazy global handle.
type Client struct {
	rc         *resty.Client
	collection string
	bucket     string
}

func NewClient(baseURL, collection, bucket string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	return &Client{
		rc:         rc,
		collection: collection,
		bucket:     bucket,
	}
}

func (c *Client) Upsert(ctx context.Context, doc Document) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(doc.Data).
		Put(fmt.Sprintf("/collections/%s/documents/%s",
			url.PathEscape(c.collection), url.PathEscape(doc.Key)))
	if err != nil {
		return &UnavailableError{Err: err}
	}
	if resp.IsError() {
		return &UnavailableError{Err: fmt.Errorf("upsert status %d", resp.StatusCode())}
	}
	return nil
}

type batchUpsertRequest struct {
	Documents []Document `json:"documents"`
}

type batchUpsertResponse struct {
	Results []BatchOutcome `json:"results"`
}

// UpsertBatch uploads all documents in one call and returns a per-item
// outcome. A transport or server failure fails the whole batch.
func (c *Client) UpsertBatch(ctx context.Context, docs []Document) ([]BatchOutcome, error) {
	var out batchUpsertResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(batchUpsertRequest{Documents: docs}).
		SetResult(&out).
		Post(fmt.Sprintf("/collections/%s/documents:batchUpsert", url.PathEscape(c.collection)))
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}
	if resp.IsError() {
		return nil, &UnavailableError{Err: fmt.Errorf("batch upsert status %d", resp.StatusCode())}
	}
	if len(out.Results) == 0 && len(docs) > 0 {
		return nil, &UnavailableError{Err: fmt.Errorf("batch upsert returned no per-item results")}
	}
	return out.Results, nil
}

type queryResponse struct {
	Documents []Document `json:"documents"`
}

func (c *Client) Query(ctx context.Context, f QueryFilter) ([]Document, error) {
	req := c.rc.R().SetContext(ctx)
	if f.DeviceID != "" {
		req.SetQueryParam("device_id", f.DeviceID)
	}
	if f.StartTS > 0 {
		req.SetQueryParam("start_ts", fmt.Sprintf("%d", f.StartTS))
	}
	if f.EndTS > 0 {
		req.SetQueryParam("end_ts", fmt.Sprintf("%d", f.EndTS))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	req.SetQueryParam("limit", fmt.Sprintf("%d", limit))

	var out queryResponse
	resp, err := req.SetResult(&out).
		Get(fmt.Sprintf("/collections/%s/documents", url.PathEscape(c.collection)))
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}
	if resp.IsError() {
		return nil, &UnavailableError{Err: fmt.Errorf("query status %d", resp.StatusCode())}
	}
	return out.Documents, nil
}

func (c *Client) Probe(ctx context.Context) error {
	resp, err := c.rc.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return &ConnectivityError{Surface: "documents", Err: err}
	}
	if resp.IsError() {
		return &ConnectivityError{Surface: "documents", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	return nil
}

func (c *Client) PutObject(ctx context.Context, key string, blob []byte) error {
	if c.bucket == "" {
		return fmt.Errorf("object store bucket not configured")
	}
	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(blob).
		Put(fmt.Sprintf("/buckets/%s/objects/%s",
			url.PathEscape(c.bucket), url.PathEscape(key)))
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("put object status %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) ProbeBucket(ctx context.Context) error {
	if c.bucket == "" {
		return fmt.Errorf("object store bucket not configured")
	}
	resp, err := c.rc.R().SetContext(ctx).
		Get(fmt.Sprintf("/buckets/%s", url.PathEscape(c.bucket)))
	if err != nil {
		return &ConnectivityError{Surface: "objects", Err: err}
	}
	if resp.IsError() {
		return &ConnectivityError{Surface: "objects", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	return nil
}

// Connectivity runs both probes and folds the results into a status
// report. It never returns an error; broken connectivity is data, not
// a fault.
func (c *Client) Connectivity(ctx context.Context) ConnectivityStatus {
	status := ConnectivityStatus{}
	if err := c.Probe(ctx); err != nil {
		status.Errors = append(status.Errors, err.Error())
	} else {
		status.Documents = true
	}
	if c.bucket != "" {
		if err := c.ProbeBucket(ctx); err != nil {
			status.Errors = append(status.Errors, err.Error())
		} else {
			status.Objects = true
		}
	}
	return status
}
