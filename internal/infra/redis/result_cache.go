package redis

import (
	"context"
	"encoding/json"
	"time"

	"qa-explainer-video/internal/domain/model"
)

// ResultCache keeps the sidecar payload of completed jobs so status polls
// for hot keys skip both postgres and object storage.
type ResultCache struct {
	client *Client
	ttl    time.Duration
}

func NewResultCache(client *Client, ttl time.Duration) *ResultCache {
	return &ResultCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *ResultCache) Store(ctx context.Context, jobKey string, sc *model.Sidecar) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "result:"+jobKey, data, c.ttl)
}

func (c *ResultCache) Get(ctx context.Context, jobKey string) (*model.Sidecar, error) {
	data, err := c.client.Get(ctx, "result:"+jobKey)
	if err != nil {
		return nil, err
	}

	var sc model.Sidecar
	if err := json.Unmarshal([]byte(data), &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (c *ResultCache) Delete(ctx context.Context, jobKey string) error {
	return c.client.Del(ctx, "result:"+jobKey)
}
