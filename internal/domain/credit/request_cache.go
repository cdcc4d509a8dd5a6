package credit

import (
	"context"
	"sync"
)

// RequestCache memoises balance reads for the lifetime of one request.
type RequestCache struct {
	svc *CreditService

	mu       sync.Mutex
	balances map[string]int64
}

// NewRequestCache creates an empty cache bound to the service.
func (s *CreditService) NewRequestCache() *RequestCache {
	return &RequestCache{svc: s, balances: make(map[string]int64)}
}

// Balance returns the memoised balance, loading it on first use.
func (c *RequestCache) Balance(ctx context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.balances[userID]; ok {
		return v, nil
	}
	b, err := c.svc.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	c.balances[userID] = b.Balance
	return b.Balance, nil
}

// Invalidate forgets a user's balance after a charge or grant.
func (c *RequestCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.balances, userID)
	c.mu.Unlock()
}
