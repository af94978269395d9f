package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smiledesk/clinic-platform/pkg/logging"
)

const activeCatalogKey = "catalog:active"

// Catalog serves the public service listing, fronting the repository with a
// Redis read-through cache. The cache is optional: with a nil client every
// read goes straight to the database.
type Catalog struct {
	repo   *Repository
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCatalog(repo *Repository, client *redis.Client, ttl time.Duration, logger *logging.Logger) *Catalog {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{repo: repo, client: client, ttl: ttl, logger: logger}
}

// ListActive returns the bookable services, from cache when fresh. Cache
// failures degrade to the database, never to an error.
func (c *Catalog) ListActive(ctx context.Context) ([]Service, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, activeCatalogKey).Bytes()
		if err == nil {
			var cached []Service
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			c.logger.Warn("catalog cache read failed", "error", err)
		}
	}

	services, err := c.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	if c.client != nil {
		if raw, err := json.Marshal(services); err == nil {
			if err := c.client.Set(ctx, activeCatalogKey, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("catalog cache write failed", "error", err)
			}
		}
	}
	return services, nil
}

// Invalidate drops the cached listing after a catalog write.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, activeCatalogKey).Err(); err != nil {
		c.logger.Warn("catalog cache invalidation failed", "error", err)
	}
}
