package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const statusTTL = 24 * time.Hour

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gocrm_status_cache_hits_total",
		Help: "Total number of status cache hits",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gocrm_status_cache_misses_total",
		Help: "Total number of status cache misses",
	})
	cacheErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gocrm_status_cache_errors_total",
		Help: "Total number of status cache errors",
	})
)

// PollStatus is the last-cycle snapshot kept per mail account.
type PollStatus struct {
	AccountID string    `json:"accountId"`
	FetchedAt time.Time `json:"fetchedAt"`
	Handled   int       `json:"handled"`
	Error     string    `json:"error,omitempty"`
}

// StatusCache keeps best-effort operational snapshots in Redis: per-account
// poll results and mass-action progress. Every error is swallowed — the cache
// being down must never affect fetching or API correctness, only freshness of
// the dashboards reading these keys.
type StatusCache struct {
	client *redis.Client
	prefix string
}

func NewStatusCache(client *redis.Client, prefix string) *StatusCache {
	if prefix == "" {
		prefix = "gocrm"
	}
	return &StatusCache{client: client, prefix: prefix}
}

// SetPollStatus records the outcome of one fetch cycle for an account.
func (c *StatusCache) SetPollStatus(ctx context.Context, status PollStatus) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(status)
	if err != nil {
		cacheErrors.Inc()
		return
	}
	if err := c.client.Set(ctx, c.pollKey(status.AccountID), payload, statusTTL).Err(); err != nil {
		cacheErrors.Inc()
	}
}

// GetPollStatus returns the last snapshot for an account, nil when absent.
func (c *StatusCache) GetPollStatus(ctx context.Context, accountID string) *PollStatus {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := c.client.Get(ctx, c.pollKey(accountID)).Bytes()
	if err == redis.Nil {
		cacheMisses.Inc()
		return nil
	}
	if err != nil {
		cacheErrors.Inc()
		return nil
	}
	var status PollStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		cacheErrors.Inc()
		return nil
	}
	cacheHits.Inc()
	return &status
}

// SetMassActionStatus mirrors a record's progress for cheap status polling.
func (c *StatusCache) SetMassActionStatus(ctx context.Context, id, status string, processedCount int) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"status":         status,
		"processedCount": processedCount,
	})
	if err != nil {
		cacheErrors.Inc()
		return
	}
	if err := c.client.Set(ctx, c.massActionKey(id), payload, statusTTL).Err(); err != nil {
		cacheErrors.Inc()
	}
}

func (c *StatusCache) pollKey(accountID string) string {
	return c.prefix + ":poll:" + accountID
}

func (c *StatusCache) massActionKey(id string) string {
	return c.prefix + ":massaction:" + id
}
