package apperr

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Collector gathers failures of secondary effects. The primary result of an
// operation is still returned; each failure is logged and surfaced to the
// caller as a warning.
type Collector struct {
	logger *zap.Logger

	mu       sync.Mutex
	warnings []string
}

func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger}
}

// Check records err as a failed effect. It reports whether err was nil.
func (c *Collector) Check(effect string, err error) bool {
	if err == nil {
		return true
	}
	c.logger.Warn("secondary effect failed", zap.String("effect", effect), zap.Error(err))
	c.add(fmt.Sprintf("%s failed: %v", effect, err))
	return false
}

// Warn records a warning that is not tied to an error.
func (c *Collector) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Warn(msg)
	c.add(msg)
}

// Warnings returns the collected warnings, or nil if there are none.
func (c *Collector) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.warnings) == 0 {
		return nil
	}
	return append([]string(nil), c.warnings...)
}

func (c *Collector) add(msg string) {
	c.mu.Lock()
	c.warnings = append(c.warnings, msg)
	c.mu.Unlock()
}
