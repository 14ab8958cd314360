// Package broker looks up which RIB dumps exist at a snapshot time.
package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"IXScan/internal/config"
	"IXScan/internal/model"
)

// ErrBroker is returned when the broker answers with an error document.
var ErrBroker = errors.New("broker error")

// maxPages bounds pagination against a broker that never returns a short page.
const maxPages = 100

// brokerTime is the zone-less UTC layout the broker uses for timestamps.
const brokerTime = "2006-01-02T15:04:05"

type searchResponse struct {
	Count    int          `json:"count"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Error    *string      `json:"error"`
	Data     []searchItem `json:"data"`
}

type searchItem struct {
	TsStart     string `json:"ts_start"`
	TsEnd       string `json:"ts_end"`
	CollectorID string `json:"collector_id"`
	DataType    string `json:"data_type"`
	URL         string `json:"url"`
	RoughSize   int64  `json:"rough_size"`
	ExactSize   int64  `json:"exact_size"`
}

// Client queries a BGPKIT broker for the RIB dumps taken at a given time.
type Client struct {
	http       *http.Client
	baseURL    string
	pageSize   int
	collectors []string
	project    string
}

// NewClient creates a broker client from the broker section of the config.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		http:       &http.Client{Timeout: cfg.BrokerTimeout()},
		baseURL:    strings.TrimRight(cfg.Broker.URL, "/"),
		pageSize:   cfg.Broker.PageSize,
		collectors: cfg.Broker.Collectors,
		project:    cfg.Broker.Project,
	}
}

// Sources returns every RIB dump whose time window contains ts, largest first.
func (c *Client) Sources(ctx context.Context, ts time.Time) ([]model.DataSource, error) {
	var out []model.DataSource
	complete := false
	for page := 1; page <= maxPages; page++ {
		resp, err := c.search(ctx, ts, page)
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Data {
			out = append(out, c.toSource(item, ts))
		}
		if len(resp.Data) < c.pageSize {
			complete = true
			break
		}
	}
	if !complete {
		zap.S().Warnf("Broker still had results after %d pages of %d, the source list is truncated to %d RIB dumps.",
			maxPages, c.pageSize, len(out))
	}
	SortBySize(out)
	zap.S().Infof("Broker returned %d RIB dumps for %s.", len(out), ts.UTC().Format(time.RFC3339))
	return out, nil
}

func (c *Client) search(ctx context.Context, ts time.Time, page int) (*searchResponse, error) {
	q := url.Values{}
	unix := strconv.FormatInt(ts.Unix(), 10)
	q.Set("ts_start", unix)
	q.Set("ts_end", unix)
	q.Set("data_type", "rib")
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(c.pageSize))
	if len(c.collectors) > 0 {
		q.Set("collector_id", strings.Join(c.collectors, ","))
	}
	if c.project != "" {
		q.Set("project", c.project)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build broker request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("broker request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("broker: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode broker response: %w", err)
	}
	if out.Error != nil && *out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrBroker, *out.Error)
	}
	return &out, nil
}

func (c *Client) toSource(item searchItem, ts time.Time) model.DataSource {
	src := model.DataSource{
		Collector: item.CollectorID,
		Project:   projectOf(item.CollectorID),
		URL:       item.URL,
		RoughSize: item.RoughSize,
		Timestamp: ts.UTC(),
	}
	if start, err := time.Parse(brokerTime, item.TsStart); err == nil {
		src.Timestamp = start.UTC()
	}
	return src
}

// projectOf derives the collector project from its naming scheme.
func projectOf(collector string) string {
	if strings.HasPrefix(collector, "rrc") {
		return "riperis"
	}
	return "routeviews"
}

// SortBySize orders sources by descending rough size, breaking ties by collector.
func SortBySize(sources []model.DataSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].RoughSize != sources[j].RoughSize {
			return sources[i].RoughSize > sources[j].RoughSize
		}
		return sources[i].Collector < sources[j].Collector
	})
}
