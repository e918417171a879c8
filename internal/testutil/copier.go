package testutil

import (
	"sync"

	"savesaver/internal/fs"
	"savesaver/internal/saver"
)

// FlakyCopier fails the first FailCount calls with Err, then delegates to a
// real OSCopier. It counts every call, which lets tests assert on retry
// behavior. Safe for concurrent use.
type FlakyCopier struct {
	Err       error
	FailCount int

	mu    sync.Mutex
	calls int
	real  *fs.OSCopier
}

// NewFlakyCopier creates a copier that fails the first failCount calls.
func NewFlakyCopier(failCount int, err error) *FlakyCopier {
	return &FlakyCopier{
		Err:       err,
		FailCount: failCount,
		real:      fs.NewOSCopier(),
	}
}

func (c *FlakyCopier) CopyFile(src, dst string) error {
	c.mu.Lock()
	c.calls++
	fail := c.calls <= c.FailCount
	c.mu.Unlock()

	if fail {
		return c.Err
	}
	return c.real.CopyFile(src, dst)
}

// Calls returns how many times CopyFile has been invoked.
func (c *FlakyCopier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var _ saver.FileCopier = (*FlakyCopier)(nil)
