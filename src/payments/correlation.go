package payments

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"netbill/src/lib"
	"netbill/src/types"
)

// CorrelationTTL bounds how long a provider conversation id stays routable.
// Result callbacks normally land within seconds; anything later is treated
// as untracked.
const CorrelationTTL = 10 * time.Minute

const correlationKeyPrefix = "correlation:"

// CorrelationEntry ties a provider-issued originator/conversation id back to
// the platform and intent that triggered the outbound command. ReqCode is
// set when the command concerns a specific PaymentRecord, so the result
// handler can find the record without relying on provider-side references.
type CorrelationEntry struct {
	PlatformID uint                    `json:"platform_id"`
	Type       types.CorrelationIntent `json:"type"`
	ReqCode    string                  `json:"reqcode,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// RegisterCorrelation records an originator id so the asynchronous result
// callback can be attributed later.
func RegisterCorrelation(ctx context.Context, originatorID string, platformID uint, intent types.CorrelationIntent) error {
	return RegisterCorrelationEntry(ctx, originatorID, &CorrelationEntry{
		PlatformID: platformID,
		Type:       intent,
	})
}

// RegisterCorrelationEntry records a fully-specified entry. CreatedAt is
// stamped here.
func RegisterCorrelationEntry(ctx context.Context, originatorID string, entry *CorrelationEntry) error {
	entry.CreatedAt = time.Now()
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	rdb := lib.GetRedisClient()
	if err := rdb.Set(ctx, correlationKeyPrefix+originatorID, raw, CorrelationTTL).Err(); err != nil {
		log.Printf("[correlation] Error registering %s: %s\n", originatorID, err.Error())
		return err
	}
	return nil
}

// ResolveCorrelation looks up and consumes an originator id. A nil entry is
// a normal outcome: the id was never registered, already consumed, or has
// expired, so the callback is untracked.
func ResolveCorrelation(ctx context.Context, originatorID string) (*CorrelationEntry, error) {
	rdb := lib.GetRedisClient()
	raw, err := rdb.GetDel(ctx, correlationKeyPrefix+originatorID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		log.Printf("[correlation] Error resolving %s: %s\n", originatorID, err.Error())
		return nil, err
	}
	var entry CorrelationEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, err
	}
	if time.Since(entry.CreatedAt) > CorrelationTTL {
		return nil, nil
	}
	return &entry, nil
}
