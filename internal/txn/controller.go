package txn

import "sync"

// Controller is handed to every handler invocation. Abort is the only
// cancellation primitive: it is synchronous and, inside a coordinated
// operation, restores the captured stores before returning.
type Controller struct {
	mu      sync.Mutex
	aborted bool
	reason  string
	onAbort func(reason string)
}

// NewController creates a controller that has not been aborted.
func NewController() *Controller {
	return &Controller{}
}

// Abort marks the operation aborted with reason. Only the first call has an
// effect.
func (c *Controller) Abort(reason string) {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return
	}
	c.aborted = true
	c.reason = reason
	hook := c.onAbort
	c.mu.Unlock()

	if hook != nil {
		hook(reason)
	}
}

// Aborted reports whether Abort has been called.
func (c *Controller) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Reason returns the reason passed to the first Abort call.
func (c *Controller) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// bind installs the abort hook for the duration of one operation and
// returns a function that removes it.
func (c *Controller) bind(hook func(reason string)) func() {
	c.mu.Lock()
	prev := c.onAbort
	c.onAbort = hook
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.onAbort = prev
		c.mu.Unlock()
	}
}
