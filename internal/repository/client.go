// client.go: HTTP implementation of the content repository Read/Write API
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"github.com/dkovacevic/dossier-migrate/internal/logging"
)

const (
	defaultTimeout             = 60 * time.Second
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
	defaultUserAgent           = "dossier-migrate"
)

// Client talks to the content repository's public REST API. Thread-safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	logger     interface {
		Debug(msg string, args ...any)
		Warn(msg string, args ...any)
	}
}

var _ ReadWriter = (*Client)(nil)

// NewClient creates a repository client from settings.
func NewClient(settings *conf.RepositorySettings) *Client {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:  settings.BaseURL,
		username: settings.Username,
		password: settings.Password,
		logger:   logging.ForService("repository"),
	}
}

// --- wire envelopes ---

type nodeEntry struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	NodeType  string         `json:"nodeType"`
	ParentID  string         `json:"parentId"`
	IsFolder  bool           `json:"isFolder"`
	CreatedAt time.Time      `json:"createdAt"`
	Path      *struct {
		Name string `json:"name"`
	} `json:"path,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

func (ne *nodeEntry) toEntry() Entry {
	e := Entry{
		ID:         ne.ID,
		Name:       ne.Name,
		NodeType:   ne.NodeType,
		ParentID:   ne.ParentID,
		IsFolder:   ne.IsFolder,
		CreatedAt:  ne.CreatedAt,
		Properties: ne.Properties,
	}
	if ne.Path != nil {
		e.Path = ne.Path.Name
	}
	return e
}

type listEnvelope struct {
	List struct {
		Pagination struct {
			HasMoreItems bool `json:"hasMoreItems"`
			TotalItems   int  `json:"totalItems"`
		} `json:"pagination"`
		Entries []struct {
			Entry nodeEntry `json:"entry"`
		} `json:"entries"`
	} `json:"list"`
}

type entryEnvelope struct {
	Entry nodeEntry `json:"entry"`
}

// Search executes a text-language query with skip/take pagination.
func (c *Client) Search(ctx context.Context, query string, skip, take int, sort []Sort) (SearchResult, error) {
	type sortSpec struct {
		Type      string `json:"type"`
		Field     string `json:"field"`
		Ascending bool   `json:"ascending"`
	}
	body := map[string]any{
		"query": map[string]any{
			"query":    query,
			"language": "afts",
		},
		"paging": map[string]any{
			"skipCount": skip,
			"maxItems":  take,
		},
	}
	if len(sort) > 0 {
		specs := make([]sortSpec, 0, len(sort))
		for _, s := range sort {
			specs = append(specs, sortSpec{Type: "FIELD", Field: s.Field, Ascending: s.Ascending})
		}
		body["sort"] = specs
	}

	var envelope listEnvelope
	err := c.do(ctx, http.MethodPost, c.baseURL+"/search/versions/1/search", body, &envelope)
	if err != nil {
		return SearchResult{}, errors.New(err).
			Component("repository-client").
			Category(errors.CategoryRepository).
			Context("operation", "search").
			Context("skip", skip).
			Build()
	}

	result := SearchResult{
		HasMore:    envelope.List.Pagination.HasMoreItems,
		TotalItems: envelope.List.Pagination.TotalItems,
		Entries:    make([]Entry, 0, len(envelope.List.Entries)),
	}
	for i := range envelope.List.Entries {
		result.Entries = append(result.Entries, envelope.List.Entries[i].Entry.toEntry())
	}
	return result, nil
}

// GetChildren lists the direct children of a folder, following pagination
// until exhausted.
func (c *Client) GetChildren(ctx context.Context, folderID string) ([]Entry, error) {
	var all []Entry
	skip := 0
	const pageSize = 100

	for {
		url := fmt.Sprintf("%s/alfresco/versions/1/nodes/%s/children?skipCount=%d&maxItems=%d&include=path,properties",
			c.baseURL, folderID, skip, pageSize)

		var envelope listEnvelope
		if err := c.do(ctx, http.MethodGet, url, nil, &envelope); err != nil {
			return nil, errors.New(err).
				Component("repository-client").
				Category(errors.CategoryRepository).
				Context("operation", "get-children").
				Context("folder_id", folderID).
				Build()
		}

		for i := range envelope.List.Entries {
			all = append(all, envelope.List.Entries[i].Entry.toEntry())
		}
		if !envelope.List.Pagination.HasMoreItems {
			return all, nil
		}
		skip += pageSize
	}
}

// MoveDocument moves a node under the destination folder. HTTP 4xx responses
// other than auth failures are reported as a logical rejection (false, nil).
func (c *Client) MoveDocument(ctx context.Context, nodeID, destFolderID string) (bool, error) {
	url := fmt.Sprintf("%s/alfresco/versions/1/nodes/%s/move", c.baseURL, nodeID)
	body := map[string]any{"targetParentId": destFolderID}

	status, _, err := c.doRaw(ctx, http.MethodPost, url, body)
	if err != nil {
		return false, errors.New(err).
			Component("repository-client").
			Category(errors.CategoryMove).
			Context("node_id", nodeID).
			Context("dest_folder_id", destFolderID).
			Build()
	}
	switch {
	case status >= 200 && status < 300:
		return true, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return false, errors.Newf("move rejected with authentication failure (status %d)", status).
			Component("repository-client").
			Category(errors.CategoryRepository).
			Context("node_id", nodeID).
			Build()
	case status >= 400 && status < 500:
		c.logger.Warn("move rejected by repository", "node_id", nodeID, "status", status)
		return false, nil
	default:
		return false, errors.Newf("move failed with status %d", status).
			Component("repository-client").
			Category(errors.CategoryRepository).
			Context("node_id", nodeID).
			Build()
	}
}

// CreateFolder creates a child folder under parentID. If a folder with that
// name already exists the existing node id is returned, making the call
// idempotent.
func (c *Client) CreateFolder(ctx context.Context, parentID, name string, properties map[string]any) (string, error) {
	url := fmt.Sprintf("%s/alfresco/versions/1/nodes/%s/children", c.baseURL, parentID)
	body := map[string]any{
		"name":     name,
		"nodeType": "cm:folder",
	}
	if len(properties) > 0 {
		body["properties"] = properties
	}

	status, respBody, err := c.doRaw(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", errors.New(err).
			Component("repository-client").
			Category(errors.CategoryRepository).
			Context("operation", "create-folder").
			Context("parent_id", parentID).
			Context("name", name).
			Build()
	}

	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		var envelope entryEnvelope
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return "", fmt.Errorf("decoding create-folder response: %w", err)
		}
		return envelope.Entry.ID, nil
	case status == http.StatusConflict:
		// Already present, fetch the existing child of that name.
		return c.findChildByName(ctx, parentID, name)
	default:
		return "", errors.Newf("create folder failed with status %d", status).
			Component("repository-client").
			Category(errors.CategoryRepository).
			Context("parent_id", parentID).
			Context("name", name).
			Build()
	}
}

// findChildByName resolves an existing child folder id by exact name.
func (c *Client) findChildByName(ctx context.Context, parentID, name string) (string, error) {
	children, err := c.GetChildren(ctx, parentID)
	if err != nil {
		return "", err
	}
	for i := range children {
		if children[i].IsFolder && children[i].Name == name {
			return children[i].ID, nil
		}
	}
	return "", errors.Newf("folder %q reported as existing under %s but not found among children", name, parentID).
		Component("repository-client").
		Category(errors.CategoryNotFound).
		Build()
}

// UpdateNodeProperties patches node metadata.
func (c *Client) UpdateNodeProperties(ctx context.Context, nodeID string, properties map[string]any) (bool, error) {
	url := fmt.Sprintf("%s/alfresco/versions/1/nodes/%s", c.baseURL, nodeID)
	body := map[string]any{"properties": properties}

	status, _, err := c.doRaw(ctx, http.MethodPut, url, body)
	if err != nil {
		return false, errors.New(err).
			Component("repository-client").
			Category(errors.CategoryRepository).
			Context("operation", "update-properties").
			Context("node_id", nodeID).
			Build()
	}
	if status >= 200 && status < 300 {
		return true, nil
	}
	if status >= 400 && status < 500 {
		c.logger.Warn("property update rejected", "node_id", nodeID, "status", status)
		return false, nil
	}
	return false, errors.Newf("property update failed with status %d", status).
		Component("repository-client").
		Category(errors.CategoryRepository).
		Context("node_id", nodeID).
		Build()
}

// do performs a request and decodes a JSON response into out, treating any
// non-2xx status as an error.
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	status, respBody, err := c.doRaw(ctx, method, url, body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%s %s returned status %d", method, url, status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response of %s %s: %w", method, url, err)
	}
	return nil
}

// doRaw performs a request and returns the status code and body bytes.
func (c *Client) doRaw(ctx context.Context, method, url string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug("repository call",
		"method", method, "url", url,
		"status", resp.StatusCode, "elapsed", time.Since(start))
	return resp.StatusCode, respBody, nil
}
