package prism

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultPort    = 9440
	defaultTimeout = 30 * time.Second

	// v3 clusters/list is effectively single-page; 100 covers any
	// realistic Prism Central deployment.
	clusterListLength = 100
)

// ErrUnavailable marks an endpoint the remote side does not serve, e.g. the
// Files API on a deployment without file servers. Callers treat it as an
// empty result rather than a transport failure.
var ErrUnavailable = errors.New("endpoint unavailable")

// Config holds the connection settings for a Prism Central endpoint.
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Client talks to the Prism Central v2.0, v3 and Files v4 API families.
// Every call carries a fixed timeout and is not retried; transport outcomes
// are counted as a side effect of each request.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		// Prism Central ships with a self-signed certificate.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// ListClusterSummaries returns the v3 cluster entities used for the
// uuid-to-name index.
func (c *Client) ListClusterSummaries(ctx context.Context) ([]Entity, error) {
	resp, err := c.postV3(ctx, "clusters/list", v3ListRequest{Kind: "cluster", Length: clusterListLength})
	if err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// ListClusterStats returns the v2.0 clusters carrying usage statistics.
func (c *Client) ListClusterStats(ctx context.Context) ([]ClusterV2, error) {
	var out v2ListResponse[ClusterV2]
	if err := c.getJSON(ctx, "clusters", c.v2URL("clusters"), &out); err != nil {
		return nil, err
	}
	return out.Entities, nil
}

// ListHosts returns one page of v3 host entities starting at offset.
func (c *Client) ListHosts(ctx context.Context, offset, length int) (*Page, error) {
	resp, err := c.postV3(ctx, "hosts/list", v3ListRequest{Kind: "host", Length: length, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &Page{Entities: resp.Entities, TotalMatches: resp.Metadata.TotalMatches}, nil
}

// ListVMs returns one page of v3 VM entities starting at offset.
func (c *Client) ListVMs(ctx context.Context, offset, length int) (*Page, error) {
	resp, err := c.postV3(ctx, "vms/list", v3ListRequest{Kind: "vm", Length: length, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &Page{Entities: resp.Entities, TotalMatches: resp.Metadata.TotalMatches}, nil
}

// ListStorageContainers returns the v2.0 storage containers, unpaged.
func (c *Client) ListStorageContainers(ctx context.Context) ([]StorageContainerV2, error) {
	var out v2ListResponse[StorageContainerV2]
	if err := c.getJSON(ctx, "storage_containers", c.v2URL("storage_containers"), &out); err != nil {
		return nil, err
	}
	return out.Entities, nil
}

// ListFileServers returns the Files v4 file server identities.
func (c *Client) ListFileServers(ctx context.Context) ([]FileServer, error) {
	endpoint := "files/v4.0/config/file-servers"
	var out v4ListResponse[FileServer]
	if err := c.getJSON(ctx, endpoint, c.v4URL(endpoint), &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GetFileServerStats returns the Files v4 stats payload for one file server.
func (c *Client) GetFileServerStats(ctx context.Context, id string) (*FileServerStats, error) {
	endpoint := fmt.Sprintf("files/v4.0/stats/file-servers/%s", id)
	var out v4ItemResponse[FileServerStats]
	if err := c.getJSON(ctx, endpoint, c.v4URL(endpoint), &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) v2URL(endpoint string) string {
	return fmt.Sprintf("https://%s:%d/api/nutanix/v2.0/%s", c.cfg.Host, c.cfg.Port, endpoint)
}

func (c *Client) v3URL(endpoint string) string {
	return fmt.Sprintf("https://%s:%d/api/nutanix/v3/%s", c.cfg.Host, c.cfg.Port, endpoint)
}

func (c *Client) v4URL(endpoint string) string {
	return fmt.Sprintf("https://%s:%d/api/%s", c.cfg.Host, c.cfg.Port, endpoint)
}

func (c *Client) postV3(ctx context.Context, endpoint string, body v3ListRequest) (*v3ListResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrapf(err, "marshaling %s request", endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.v3URL(endpoint), bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrapf(err, "building %s request", endpoint)
	}

	var out v3ListResponse
	if err := c.do(endpoint, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building %s request", endpoint)
	}
	return c.do(endpoint, req, out)
}

func (c *Client) do(endpoint string, req *http.Request, out any) error {
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	seconds := time.Since(start).Seconds()
	if err != nil {
		observeRequest(endpoint, seconds, err)
		countScrapeError(endpoint)
		return errors.Wrapf(err, "request failed for %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		observeRequest(endpoint, seconds, ErrUnavailable)
		zap.S().Named("prism").Debugf("endpoint %s not available (404)", endpoint)
		return ErrUnavailable
	}

	if resp.StatusCode != http.StatusOK {
		observeRequest(endpoint, seconds, errors.Errorf("status %d", resp.StatusCode))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		zap.S().Named("prism").Errorf("API error %d for %s: %s", resp.StatusCode, endpoint, string(body))
		return errors.Errorf("API error %d for %s", resp.StatusCode, endpoint)
	}

	observeRequest(endpoint, seconds, nil)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s response", endpoint)
	}
	return nil
}
