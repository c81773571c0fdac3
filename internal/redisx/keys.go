package redisx

import (
	"fmt"
	"time"
)

// Keys are namespaced so several shops can share one redis.
const keyPrefix = "meatshop"

func idempotencyKey(key string) string     { return fmt.Sprintf("%s:idem:order:%s", keyPrefix, key) }
func orderStatusKey(orderID string) string { return fmt.Sprintf("%s:order:%s:status", keyPrefix, orderID) }
func dedupKey(consumer, eventID string) string {
	return fmt.Sprintf("%s:dedup:%s:%s", keyPrefix, consumer, eventID)
}

var (
	// a client retrying checkout a day later gets a new order
	IdempotencyTTL = 24 * time.Hour
	StatusTTL      = 5 * time.Minute
	DedupTTL       = 48 * time.Hour
)
