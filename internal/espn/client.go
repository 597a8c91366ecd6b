// Package espn reads NFL schedules and results from ESPN's public scoreboard API
// and turns its events into model.Game values.
//
// CACHING:
// A week's scoreboard is cached for a few minutes and the current-week lookup
// for an hour. Identical requests that arrive while one is already in flight
// share its result (singleflight) instead of all going upstream. Callers that
// must see the latest scores (sync with fresh=true) skip the cache read but
// still refresh it.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/metrics"
)

const DefaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports/football/nfl"

// maxBodyBytes caps how much of a response we are willing to read.
const maxBodyBytes = 8 << 20

// Options configures a Client. Zero values fall back to the defaults below.
type Options struct {
	BaseURL        string
	Timeout        time.Duration // default 10s
	ScoreboardTTL  time.Duration // default 5m
	CurrentWeekTTL time.Duration // default 1h
	Cache          Cache         // default in-memory
	HTTPClient     *http.Client
}

type Client struct {
	baseURL        string
	httpClient     *http.Client
	cache          Cache
	scoreboardTTL  time.Duration
	currentWeekTTL time.Duration
	group          singleflight.Group
	logger         *slog.Logger
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.ScoreboardTTL <= 0 {
		opts.ScoreboardTTL = 5 * time.Minute
	}
	if opts.CurrentWeekTTL <= 0 {
		opts.CurrentWeekTTL = time.Hour
	}
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:        opts.BaseURL,
		httpClient:     opts.HTTPClient,
		cache:          opts.Cache,
		scoreboardTTL:  opts.ScoreboardTTL,
		currentWeekTTL: opts.CurrentWeekTTL,
		logger:         logger,
	}
}

// Scoreboard fetches one week of one season type. A seasonYear above zero is
// sent as the feed's dates parameter; zero means the season the feed is on.
// fresh=true ignores any cached copy.
func (c *Client) Scoreboard(ctx context.Context, seasonYear, seasonType, week int, fresh bool) (*ScoreboardResponse, error) {
	key := fmt.Sprintf("scoreboard:%d:%d:%d", seasonYear, seasonType, week)
	url := fmt.Sprintf("%s/scoreboard?seasontype=%d&week=%d", c.baseURL, seasonType, week)
	if seasonYear > 0 {
		url += fmt.Sprintf("&dates=%d", seasonYear)
	}

	body, err := c.fetch(ctx, "scoreboard", key, url, c.scoreboardTTL, fresh)
	if err != nil {
		return nil, err
	}
	return decodeScoreboard(body)
}

// CurrentWeek asks the feed which week it considers current. The answer comes
// from the default (parameterless) scoreboard, which also says whether that
// week's games are all finished. fresh=true ignores any cached copy; sync
// needs it because Completed flips as soon as the last game ends.
func (c *Client) CurrentWeek(ctx context.Context, fresh bool) (*CurrentWeek, error) {
	body, err := c.fetch(ctx, "current_week", "scoreboard:current", c.baseURL+"/scoreboard", c.currentWeekTTL, fresh)
	if err != nil {
		return nil, err
	}
	sb, err := decodeScoreboard(body)
	if err != nil {
		return nil, err
	}

	cw := &CurrentWeek{
		SeasonType: sb.SeasonTypeID(),
		Week:       sb.Week.Number,
		Year:       sb.SeasonYear(),
		Completed:  sb.AllCompleted(),
	}
	if cw.SeasonType == 0 || cw.Week == 0 {
		return nil, apperror.Upstream("score feed did not report a current week", nil)
	}
	return cw, nil
}

// fetch returns the raw body for url, consulting the cache unless fresh is set.
// A cache backend failure is logged and treated as a miss.
func (c *Client) fetch(ctx context.Context, endpoint, key, url string, ttl time.Duration, fresh bool) ([]byte, error) {
	if !fresh {
		data, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("feed cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		if ok {
			metrics.FeedCacheHitsTotal.Inc()
			return data, nil
		}
		metrics.FeedCacheMissesTotal.Inc()
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		data, err := c.get(ctx, endpoint, url)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, data, ttl); err != nil {
			c.logger.Warn("feed cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("feed request shared", slog.String("key", key))
	}
	return v.([]byte), nil
}

func (c *Client) get(ctx context.Context, endpoint, url string) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.FeedRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("espn: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.FeedRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, apperror.Upstream("score feed unreachable", err)
	}
	defer resp.Body.Close()

	metrics.FeedRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("score feed returned non-2xx",
			slog.String("url", url),
			slog.Int("status", resp.StatusCode),
		)
		return nil, apperror.Upstream(fmt.Sprintf("score feed returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperror.Upstream("reading score feed response", err)
	}
	return body, nil
}

func decodeScoreboard(body []byte) (*ScoreboardResponse, error) {
	var sb ScoreboardResponse
	if err := json.Unmarshal(body, &sb); err != nil {
		return nil, apperror.Upstream("score feed sent an unreadable response", err)
	}
	return &sb, nil
}
