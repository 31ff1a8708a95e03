// Package feargreed reads the crypto Fear and Greed Index published by alternative.me
package feargreed

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/httpclient"
	"github.com/newthinker/cyclewatch/internal/series"
	"github.com/newthinker/cyclewatch/internal/signal"
)

const (
	defaultEndpoint = "https://api.alternative.me/fng/"

	// MaxDays bounds a Score lookback so an old date does not download the full history
	MaxDays = 5000
)

// Entry is one published index value
type Entry struct {
	Time           time.Time     `json:"time"`
	Value          float64       `json:"value"`
	Classification string        `json:"classification"`
	UntilUpdate    time.Duration `json:"until_update,omitempty"`
}

// Client implements sentiment.Provider
type Client struct {
	client   *httpclient.Client
	endpoint string
	now      func() time.Time
}

// Config holds Fear and Greed client settings
type Config struct {
	Endpoint   string
	Timeout    time.Duration
	MaxRetries int
	Observer   httpclient.Observer
}

// New creates a Fear and Greed client
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &Client{
		client: httpclient.New(httpclient.Options{
			Name:       "feargreed",
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Observer:   cfg.Observer,
		}),
		endpoint: cfg.Endpoint,
		now:      time.Now,
	}
}

func (c *Client) Name() string {
	return "feargreed"
}

type response struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
		TimeUntilUpdate     string `json:"time_until_update"`
	} `json:"data"`
	Metadata struct {
		Error *string `json:"error"`
	} `json:"metadata"`
}

// Entries returns the last limit index values, oldest first
func (c *Client) Entries(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, core.Errorf(core.ErrInvalidParameter, "limit must be positive, got %d", limit)
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	endpoint := c.endpoint
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + q.Encode()
	} else {
		endpoint += "?" + q.Encode()
	}

	var resp response
	if err := c.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("fear and greed index: %w", err))
	}
	if resp.Metadata.Error != nil && *resp.Metadata.Error != "" {
		return nil, core.Errorf(core.ErrProviderFailed, "fear and greed index: %s", *resp.Metadata.Error)
	}

	entries := make([]Entry, 0, len(resp.Data))
	for _, d := range resp.Data {
		ts, err := strconv.ParseInt(d.Timestamp, 10, 64)
		if err != nil {
			return nil, core.Errorf(core.ErrProviderFailed, "fear and greed timestamp %q: %v", d.Timestamp, err)
		}
		value, err := strconv.ParseFloat(d.Value, 64)
		if err != nil {
			return nil, core.Errorf(core.ErrProviderFailed, "fear and greed value %q: %v", d.Value, err)
		}

		e := Entry{
			Time:           time.Unix(ts, 0).UTC(),
			Value:          value,
			Classification: d.ValueClassification,
		}
		if secs, err := strconv.ParseInt(d.TimeUntilUpdate, 10, 64); err == nil {
			e.UntilUpdate = time.Duration(secs) * time.Second
		}
		entries = append(entries, e)
	}

	// The API lists newest first.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Time.Before(entries[j].Time) })
	return entries, nil
}

// History returns the index of the last days days as a daily series
func (c *Client) History(ctx context.Context, days int) (series.TimeSeries, error) {
	entries, err := c.Entries(ctx, days)
	if err != nil {
		return series.TimeSeries{}, err
	}

	obs := make([]core.Observation, len(entries))
	for i, e := range entries {
		obs[i] = core.Observation{Time: e.Time, Value: e.Value}
	}
	return series.New(obs)
}

// Score returns the index value published on the UTC day of at
func (c *Client) Score(ctx context.Context, at time.Time) (signal.Sentiment, error) {
	days := int(math.Ceil(c.now().Sub(at).Hours()/24)) + 1
	if days < 1 {
		days = 1
	}
	if days > MaxDays {
		return signal.Unset(), nil
	}

	history, err := c.History(ctx, days)
	if err != nil {
		return signal.Unset(), err
	}
	if v, ok := history.Lookup(at); ok {
		return signal.SentimentOf(v), nil
	}
	return signal.Unset(), nil
}
