package marketdata

import (
	"bytes"
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// TTL by request kind (§4.2).
const (
	TTLLivePrice     = 5 * time.Second
	TTLCandles       = 60 * time.Second
	TTLHistoricalOHLCV = 12 * time.Hour
)

// entry is one cached payload: the raw JSON bytes plus when it was
// written, so a fallback read can ignore TTL and still return the
// most recent value on total provider failure (§4.2, §7).
type entry struct {
	data      []byte
	storedAt  time.Time
}

func (e entry) fresh(ttl time.Duration) bool {
	return time.Since(e.storedAt) < ttl
}

// l1 is a bounded-size LRU in-memory cache keyed by the queue's
// content-hash key, grounded on the sharded map-plus-mutex shape of
// the teacher's pkg/cache.ShardedPriceCache but with true LRU eviction
// bounded to maxEntries, as §4.2 requires.
type l1 struct {
	mu         sync.Mutex
	maxEntries int
	items      map[string]*list.Element
	order      *list.List
}

type l1Node struct {
	key   string
	entry entry
}

func newL1(maxEntries int) *l1 {
	if maxEntries <= 0 {
		maxEntries = 2000
	}
	return &l1{maxEntries: maxEntries, items: make(map[string]*list.Element), order: list.New()}
}

func (c *l1) get(key string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return entry{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*l1Node).entry, true
}

func (c *l1) set(key string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*l1Node).entry = e
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&l1Node{key: key, entry: e})
	c.items[key] = el
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*l1Node).key)
	}
}

// l2 is an on-disk JSON cache keyed by content hash, one file per key
// under dir, satisfying §4.2's "L2 on-disk JSON keyed by content hash".
type l2 struct {
	dir string
}

func newL2(dir string) *l2 {
	return &l2{dir: dir}
}

func (c *l2) path(key string) string {
	return filepath.Join(c.dir, key[:2], key+".json")
}

func (c *l2) get(key string) (entry, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return entry{}, false
	}
	var wrapped struct {
		Data     json.RawMessage `json:"data"`
		StoredAt time.Time       `json:"stored_at"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return entry{}, false
	}
	return entry{data: wrapped.Data, storedAt: wrapped.StoredAt}, true
}

func (c *l2) set(key string, e entry) error {
	p := c.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	wrapped := struct {
		Data     json.RawMessage `json:"data"`
		StoredAt time.Time       `json:"stored_at"`
	}{Data: e.data, StoredAt: e.storedAt}
	buf, err := json.Marshal(wrapped)
	if err != nil {
		return err
	}
	return os.WriteFile(p, buf, 0o644)
}

// l3 is an optional distributed cache backed by S3, filling the "Redis
// -like backend" slot of §4.2 with the one remote object-store client
// this repository's dependency pack actually demonstrates.
type l3 struct {
	client *s3.Client
	bucket string
}

func newL3(client *s3.Client, bucket string) *l3 {
	if client == nil || bucket == "" {
		return nil
	}
	return &l3{client: client, bucket: bucket}
}

func (c *l3) get(ctx context.Context, key string) (entry, bool) {
	if c == nil {
		return entry{}, false
	}
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key + ".json"),
	})
	if err != nil {
		return entry{}, false
	}
	defer out.Body.Close()
	var wrapped struct {
		Data     json.RawMessage `json:"data"`
		StoredAt time.Time       `json:"stored_at"`
	}
	if err := json.NewDecoder(out.Body).Decode(&wrapped); err != nil {
		return entry{}, false
	}
	return entry{data: wrapped.Data, storedAt: wrapped.StoredAt}, true
}

func (c *l3) set(ctx context.Context, key string, e entry) {
	if c == nil {
		return
	}
	wrapped := struct {
		Data     json.RawMessage `json:"data"`
		StoredAt time.Time       `json:"stored_at"`
	}{Data: e.data, StoredAt: e.storedAt}
	buf, err := json.Marshal(wrapped)
	if err != nil {
		return
	}
	_, _ = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key + ".json"),
		Body:   bytes.NewReader(buf),
	})
}

// Cache composes the three tiers of §4.2: reads traverse L1->L2->L3,
// writes fan out to every configured layer.
type Cache struct {
	l1 *l1
	l2 *l2
	l3 *l3
}

// NewCache builds a Cache. l3Client/l3Bucket may be zero values to
// disable the distributed tier, matching the spec's "optional".
func NewCache(maxL1Entries int, l2Dir string, l3Client *s3.Client, l3Bucket string) *Cache {
	return &Cache{
		l1: newL1(maxL1Entries),
		l2: newL2(l2Dir),
		l3: newL3(l3Client, l3Bucket),
	}
}

// ContentHashKey derives the §4.2 cache key from (provider, function,
// normalized args).
func ContentHashKey(provider, function string, args ...string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(function))
	for _, a := range args {
		h.Write([]byte{0})
		h.Write([]byte(a))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached payload if any tier has it fresh within ttl. It
// also back-fills faster tiers from a slower tier that had a hit
// (cache promotion).
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration) ([]byte, bool) {
	if e, ok := c.l1.get(key); ok && e.fresh(ttl) {
		return e.data, true
	}
	if e, ok := c.l2.get(key); ok && e.fresh(ttl) {
		c.l1.set(key, e)
		return e.data, true
	}
	if e, ok := c.l3.get(ctx, key); ok && e.fresh(ttl) {
		c.l1.set(key, e)
		_ = c.l2.set(key, e)
		return e.data, true
	}
	return nil, false
}

// GetStale ignores TTL entirely, returning whatever is present in any
// tier. Used for the §4.2/§7 fallback read on total provider failure.
func (c *Cache) GetStale(ctx context.Context, key string) ([]byte, bool) {
	if e, ok := c.l1.get(key); ok {
		return e.data, true
	}
	if e, ok := c.l2.get(key); ok {
		return e.data, true
	}
	if e, ok := c.l3.get(ctx, key); ok {
		return e.data, true
	}
	return nil, false
}

// Set writes through every configured layer.
func (c *Cache) Set(ctx context.Context, key string, data []byte) {
	e := entry{data: data, storedAt: time.Now()}
	c.l1.set(key, e)
	_ = c.l2.set(key, e)
	c.l3.set(ctx, key, e)
}
