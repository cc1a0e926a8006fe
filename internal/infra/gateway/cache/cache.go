// Package cache provides an optional Valkey-backed cache-aside layer in front of C9's
// vector search, so a burst of follow-up turns against the same thread/query does not
// re-run the similarity scan each time. Grounded on the teacher's
// faqstore.ValkeyStore get/set-with-ttl idiom.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/polaris/gateway/internal/domain/gateway"
)

const defaultTTL = 30 * time.Second

// CachedRepository wraps a gateway.Repository, caching SearchVectors results in Valkey
// keyed by (threadID, namespace, embedding, threshold, k). Every other method passes
// straight through to the wrapped repository.
type CachedRepository struct {
	gateway.Repository
	client valkey.Client
	ttl    time.Duration
}

// NewCachedRepository wraps repo with a Valkey-backed retrieval cache. A non-positive
// ttl falls back to defaultTTL.
func NewCachedRepository(repo gateway.Repository, client valkey.Client, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedRepository{Repository: repo, client: client, ttl: ttl}
}

func (c *CachedRepository) SearchVectors(ctx context.Context, embedding []float32, namespace gateway.Namespace, threadID uuid.UUID, threshold float64, k int) ([]gateway.ScoredVector, error) {
	key := c.cacheKey(embedding, namespace, threadID, threshold, k)

	if cached, ok := c.get(ctx, key); ok {
		return cached, nil
	}

	results, err := c.Repository.SearchVectors(ctx, embedding, namespace, threadID, threshold, k)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, results)
	return results, nil
}

func (c *CachedRepository) get(ctx context.Context, key string) ([]gateway.ScoredVector, bool) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	payload, err := resp.ToString()
	if err != nil {
		return nil, false
	}
	var results []gateway.ScoredVector
	if err := json.Unmarshal([]byte(payload), &results); err != nil {
		return nil, false
	}
	return results, true
}

func (c *CachedRepository) set(ctx context.Context, key string, results []gateway.ScoredVector) {
	payload, err := json.Marshal(results)
	if err != nil {
		return
	}
	cmd := c.client.B().Set().Key(key).Value(string(payload)).Ex(c.ttl).Build()
	_ = c.client.Do(ctx, cmd).Error()
}

func (c *CachedRepository) cacheKey(embedding []float32, namespace gateway.Namespace, threadID uuid.UUID, threshold float64, k int) string {
	h := sha256.New()
	for _, v := range embedding {
		fmt.Fprintf(h, "%x", v)
	}
	return fmt.Sprintf("gw:retrieval:%s:%s:%s:%g:%d", threadID, namespace, hex.EncodeToString(h.Sum(nil))[:16], threshold, k)
}

var _ gateway.Repository = (*CachedRepository)(nil)
