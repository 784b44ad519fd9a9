// Package budget enforces the resource ceilings of a crawl run.
package budget

import (
	"sync"
	"unicode/utf8"
)

// Reason names the ceiling that ended a run.
type Reason string

const (
	ReasonNone   Reason = ""
	ReasonItems  Reason = "max-items"
	ReasonBytes  Reason = "target-bytes"
	ReasonVisits Reason = "max-visits"
)

// Limits are the configured ceilings. A zero ceiling is unlimited.
type Limits struct {
	MaxItems  int
	MaxBytes  int64
	MaxVisits int
	MinChars  int
}

// Usage is a snapshot of the counters.
type Usage struct {
	Saved  int
	Bytes  int64
	Visits int
}

// Controller tracks saved pages, saved bytes and fetch attempts against Limits.
// Counters only grow. Once a ceiling trips the controller stays exhausted.
// It is safe for concurrent use.
type Controller struct {
	mu     sync.Mutex
	limits Limits
	usage  Usage
	stop   Reason
}

// New creates a Controller.
func New(limits Limits) *Controller {
	return &Controller{limits: limits}
}

// Limits returns the configured ceilings.
func (c *Controller) Limits() Limits {
	return c.limits
}

// CanProceed reports whether another fetch may start.
func (c *Controller) CanProceed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.checkLocked()
}

// Visit counts one fetch attempt if the run may proceed.
func (c *Controller) Visit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.checkLocked() {
		return false
	}

	c.usage.Visits++

	return true
}

// AcceptText reports whether text meets the minimum character count.
// Shorter text is treated exactly like an extraction that found nothing.
func (c *Controller) AcceptText(text string) bool {
	return utf8.RuneCountInString(text) >= c.limits.MinChars
}

// CanAdmit reports whether a document of size bytes would fit both the
// saved-page and the byte ceilings.
func (c *Controller) CanAdmit(size int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fitsLocked(size)
}

// Admit counts a document of size bytes. A document that does not fit is not
// counted at all and exhausts the controller.
func (c *Controller) Admit(size int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != ReasonNone {
		return false
	}

	if !c.fitsLocked(size) {
		if c.limits.MaxItems > 0 && c.usage.Saved+1 > c.limits.MaxItems {
			c.stop = ReasonItems
		} else {
			c.stop = ReasonBytes
		}

		return false
	}

	c.usage.Saved++
	c.usage.Bytes += size

	return true
}

// Exhausted returns the ceiling that stopped the run, if any.
func (c *Controller) Exhausted() (Reason, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkLocked()

	return c.stop, c.stop != ReasonNone
}

// Usage returns the current counters.
func (c *Controller) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.usage
}

func (c *Controller) fitsLocked(size int64) bool {
	if c.limits.MaxItems > 0 && c.usage.Saved+1 > c.limits.MaxItems {
		return false
	}

	if c.limits.MaxBytes > 0 && c.usage.Bytes+size > c.limits.MaxBytes {
		return false
	}

	return true
}

func (c *Controller) checkLocked() bool {
	if c.stop != ReasonNone {
		return false
	}

	switch {
	case c.limits.MaxItems > 0 && c.usage.Saved >= c.limits.MaxItems:
		c.stop = ReasonItems
	case c.limits.MaxBytes > 0 && c.usage.Bytes >= c.limits.MaxBytes:
		c.stop = ReasonBytes
	case c.limits.MaxVisits > 0 && c.usage.Visits >= c.limits.MaxVisits:
		c.stop = ReasonVisits
	}

	return c.stop == ReasonNone
}
