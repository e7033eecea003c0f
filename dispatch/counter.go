package dispatch

import "sync"

// Counter is a counting semaphore over outstanding cookie-setting pixels.
//
// Registered OnZero continuations run every time a Release brings the count
// back to zero. They run on the releasing goroutine, outside the lock.
// The count never goes negative: a Release at zero is ignored.
type Counter struct {
	mu     sync.Mutex
	n      int
	onZero []func()
}

// NewCounter returns a counter at zero.
func NewCounter() *Counter {
	return &Counter{}
}

// Acquire increments the count.
func (c *Counter) Acquire() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

// Release decrements the count and fires OnZero continuations on reaching zero.
func (c *Counter) Release() {
	c.mu.Lock()
	if c.n == 0 {
		c.mu.Unlock()
		return
	}
	c.n--
	var fire []func()
	if c.n == 0 {
		fire = append(fire, c.onZero...)
	}
	c.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

// Pending returns the current count.
func (c *Counter) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// OnZero registers fn to run whenever a Release reaches zero.
// Registration does not fire fn, even if the count is already zero.
func (c *Counter) OnZero(fn func()) {
	c.mu.Lock()
	c.onZero = append(c.onZero, fn)
	c.mu.Unlock()
}
