package scriptpool

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oriys/rift/internal/domain"
	"github.com/oriys/rift/internal/metrics"
)

// DecisionCacheKey is (method, path, sorted headers, body hash, rule_id) —
// a pure function of the request and the rule being evaluated, so the
// same key always means the same applicable decision for a cacheable rule.
type DecisionCacheKey struct {
	Method  string
	Path    string
	Headers string // sorted "k=v" pairs joined by \x00
	BodyKey string // sha256 hex of the body
	RuleID  string
}

// NewDecisionCacheKey builds a key from a normalized Request and rule ID.
func NewDecisionCacheKey(req *domain.Request, ruleID string) DecisionCacheKey {
	pairs := make([]string, 0, len(req.Headers))
	for k, vals := range req.Headers {
		for _, v := range vals {
			pairs = append(pairs, strings.ToLower(k)+"="+v)
		}
	}
	sort.Strings(pairs)

	sum := sha256.Sum256([]byte(req.Body))
	return DecisionCacheKey{
		Method:  req.Method,
		Path:    req.Path,
		Headers: strings.Join(pairs, "\x00"),
		BodyKey: hex.EncodeToString(sum[:]),
		RuleID:  ruleID,
	}
}

func (k DecisionCacheKey) string() string {
	return k.Method + "\x00" + k.Path + "\x00" + k.Headers + "\x00" + k.BodyKey + "\x00" + k.RuleID
}

type cacheEntry struct {
	key       string
	decision  Decision
	expiresAt time.Time // zero means never
	elem      *list.Element
}

// DecisionCache is an LRU-with-TTL cache of script decisions, keyed by
// DecisionCacheKey, fronting the worker pool so repeat requests that hash
// to the same key skip re-running the script. One lock guards both the
// map and its counters, so a reader never observes a map update without
// its matching counter update.
type DecisionCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[string]*cacheEntry
	order   *list.List // front = most recently used

	hits, misses, inserts, evictions, expirations int64
}

// NewDecisionCache builds a cache bounded to maxSize entries, each aged out
// after ttl (ttl<=0 disables expiry; maxSize<=0 disables eviction, which
// is only sane for small deployments since it then grows unbounded).
func NewDecisionCache(maxSize int, ttl time.Duration) *DecisionCache {
	return &DecisionCache{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
	}
}

// Get returns the cached decision for key, or ok=false on miss or expiry.
func (c *DecisionCache) Get(key DecisionCacheKey) (Decision, bool) {
	k := key.string()
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[k]
	if !ok {
		c.misses++
		metrics.Global().RecordDecisionCache("miss")
		return Decision{}, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.removeLocked(entry)
		c.expirations++
		c.misses++
		metrics.Global().RecordDecisionCache("expiration")
		metrics.Global().RecordDecisionCache("miss")
		return Decision{}, false
	}

	c.order.MoveToFront(entry.elem)
	c.hits++
	metrics.Global().RecordDecisionCache("hit")
	return entry.decision, true
}

// Put inserts or refreshes a decision, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *DecisionCache) Put(key DecisionCacheKey, decision Decision) {
	k := key.string()
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}

	if entry, ok := c.entries[k]; ok {
		entry.decision = decision
		entry.expiresAt = expiresAt
		c.order.MoveToFront(entry.elem)
		return
	}

	entry := &cacheEntry{key: k, decision: decision, expiresAt: expiresAt}
	entry.elem = c.order.PushFront(entry)
	c.entries[k] = entry
	c.inserts++
	metrics.Global().RecordDecisionCache("insert")

	if c.maxSize > 0 && len(c.entries) > c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.removeLocked(oldest.Value.(*cacheEntry))
			c.evictions++
			metrics.Global().RecordDecisionCache("eviction")
		}
	}
}

func (c *DecisionCache) removeLocked(entry *cacheEntry) {
	c.order.Remove(entry.elem)
	delete(c.entries, entry.key)
}

// Stats reports hit/miss/insert/eviction/expiration counters and size.
func (c *DecisionCache) Stats() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]int64{
		"hits":        c.hits,
		"misses":      c.misses,
		"inserts":     c.inserts,
		"evictions":   c.evictions,
		"expirations": c.expirations,
		"size":        int64(len(c.entries)),
	}
}
