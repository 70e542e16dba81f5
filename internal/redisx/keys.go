package redisx

import "time"

const (
	// Order status cache: order_status:{order_code} -> shop.Tracking JSON,
	// order_status:{order_code}:gen -> invalidation counter
	KeyOrderStatus = "order_status:%s"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	// outlives any entry written under the counter
	TTLStatusGen = time.Hour
	TTLDedup       = 48 * time.Hour
)
