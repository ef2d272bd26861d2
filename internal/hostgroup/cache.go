package hostgroup

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Cache memoizes membership per host for the lifetime of one dispatch.
// Lookup failures count as "not a member" and are memoized too, so a
// broken CLI is invoked once per host rather than once per alert.
type Cache struct {
	resolver Resolver
	target   string
	log      *zap.Logger

	mu      sync.Mutex
	members map[string]bool
	lookups int
}

func NewCache(r Resolver, target string, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{resolver: r, target: target, log: log, members: make(map[string]bool)}
}

func (c *Cache) Target() string { return c.target }

func (c *Cache) IsMember(ctx context.Context, host string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.members[host]; ok {
		return v
	}
	c.lookups++
	groups, err := c.resolver.HostGroups(ctx, host)
	if err != nil {
		c.log.Warn("hostgroup_lookup_failed", zap.String("host", host), zap.Error(err))
		c.members[host] = false
		return false
	}
	ok := Matches(groups, c.target)
	c.log.Debug("hostgroup_lookup",
		zap.String("host", host),
		zap.Int("groups", len(groups)),
		zap.Bool("member", ok),
	)
	c.members[host] = ok
	return ok
}

// Lookups is the number of resolver calls made so far.
func (c *Cache) Lookups() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups
}
