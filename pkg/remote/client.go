// Package remote fetches graph data from the backend: neighborhood
// subgraphs for expansion and per-node detail payloads for the inspector
// overlays. The viewer depends only on the Fetcher interface, so tests
// and the headless simulator substitute in-memory fixtures.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/synapview/synapview/pkg/graph"
)

// DefaultTimeout bounds a single backend round trip when the caller's
// context carries no deadline of its own.
const DefaultTimeout = 10 * time.Second

// SubgraphRequest asks for the neighborhood around one node.
type SubgraphRequest struct {
	CenterID string `json:"centerId"`
	// Depth is the traversal radius in hops. Zero means the backend
	// default.
	Depth int `json:"depth,omitempty"`
	// Limit caps the number of returned nodes. Zero means no cap.
	Limit int `json:"limit,omitempty"`
}

// NodeDetails is the inspector payload for one node.
type NodeDetails struct {
	ID               string             `json:"id"`
	Label            string             `json:"label"`
	Description      string             `json:"description,omitempty"`
	Relationships    []Relationship     `json:"relationships,omitempty"`
	EvidenceSnippets []string           `json:"evidenceSnippets,omitempty"`
	ScoreMetrics     map[string]float64 `json:"scoreMetrics,omitempty"`
}

// Relationship is one typed connection listed in a node's details.
type Relationship struct {
	TargetID string  `json:"targetId"`
	Type     string  `json:"type"`
	Weight   float64 `json:"weight,omitempty"`
}

// Fetcher is the backend surface the viewer needs.
type Fetcher interface {
	// GetSubgraph returns the neighborhood around req.CenterID. The
	// returned subgraph is self-contained: every edge endpoint appears in
	// Nodes.
	GetSubgraph(ctx context.Context, req SubgraphRequest) (graph.Subgraph, error)

	// GetNodeDetails returns the inspector payload for one node.
	GetNodeDetails(ctx context.Context, id string) (NodeDetails, error)
}

// Client is the HTTP/JSON Fetcher against a synapview backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL, for example
// "http://localhost:7474". A nil httpClient falls back to a default with
// DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// GetSubgraph implements Fetcher.
func (c *Client) GetSubgraph(ctx context.Context, req SubgraphRequest) (graph.Subgraph, error) {
	if req.CenterID == "" {
		return graph.Subgraph{}, fmt.Errorf("remote: subgraph request with empty center id")
	}

	q := url.Values{}
	q.Set("center", req.CenterID)
	if req.Depth > 0 {
		q.Set("depth", strconv.Itoa(req.Depth))
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	var sg graph.Subgraph
	if err := c.getJSON(ctx, "/api/graph/subgraph?"+q.Encode(), &sg); err != nil {
		return graph.Subgraph{}, err
	}
	return sg, nil
}

// GetNodeDetails implements Fetcher.
func (c *Client) GetNodeDetails(ctx context.Context, id string) (NodeDetails, error) {
	if id == "" {
		return NodeDetails{}, fmt.Errorf("remote: details request with empty node id")
	}
	var d NodeDetails
	if err := c.getJSON(ctx, "/api/graph/nodes/"+url.PathEscape(id), &d); err != nil {
		return NodeDetails{}, err
	}
	return d, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote: %s: backend returned %d: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: %s: decode response: %w", path, err)
	}
	return nil
}
