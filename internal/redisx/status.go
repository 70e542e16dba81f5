package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/redis/go-redis/v9"
)

// StatusCache keeps TrackOrder answers in redis next to a per-code
// generation counter. Redis failures degrade to cache misses.
type StatusCache struct {
	R   redis.Cmdable
	Key string // defaults to KeyOrderStatus
}

func (c StatusCache) key(code string) string {
	if c.Key != "" {
		return fmt.Sprintf(c.Key, code)
	}
	return fmt.Sprintf(KeyOrderStatus, code)
}

func (c StatusCache) genKey(code string) string { return c.key(code) + ":gen" }

func (c StatusCache) Get(ctx context.Context, code string) (shop.Tracking, int64, bool) {
	vals, err := c.R.MGet(ctx, c.key(code), c.genKey(code)).Result()
	if err != nil {
		log.Printf("status cache get %s: %v", code, err)
		return shop.Tracking{}, 0, false
	}
	var gen int64
	if s, ok := vals[1].(string); ok {
		gen, _ = strconv.ParseInt(s, 10, 64)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return shop.Tracking{}, gen, false
	}
	var e cachedStatus
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Gen != gen {
		return shop.Tracking{}, gen, false
	}
	return e.tracking(), gen, true
}

func (c StatusCache) Set(ctx context.Context, t shop.Tracking, gen int64) {
	b, err := json.Marshal(fromTracking(t, gen))
	if err != nil {
		return
	}
	if err := c.R.Set(ctx, c.key(t.Code), b, TTLStatusCache).Err(); err != nil {
		log.Printf("status cache set %s: %v", t.Code, err)
	}
}

// Invalidate bumps the generation before dropping the entry, so a Set that
// read the old generation writes something Get will ignore.
func (c StatusCache) Invalidate(ctx context.Context, code string) {
	_, err := c.R.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, c.genKey(code))
		p.Expire(ctx, c.genKey(code), TTLStatusGen)
		p.Del(ctx, c.key(code))
		return nil
	})
	if err != nil {
		log.Printf("status cache invalidate %s: %v", code, err)
	}
}

// cachedStatus carries the owner id, which shop.Tracking keeps out of its JSON.
type cachedStatus struct {
	Status shop.Tracking `json:"status"`
	Owner  int64         `json:"owner"`
	Gen    int64         `json:"gen"`
}

func fromTracking(t shop.Tracking, gen int64) cachedStatus {
	return cachedStatus{Status: t, Owner: t.UserID, Gen: gen}
}

func (e cachedStatus) tracking() shop.Tracking {
	t := e.Status
	t.UserID = e.Owner
	return t
}
