// Package scanner classifies a raw keystroke stream as either human typing
// or a barcode-scanner burst, purely from keystroke timing and character
// validity. There is no scanner hardware API involved.
package scanner

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
)

type Key int

const (
	KeyRune Key = iota
	KeyEnter
	KeyEscape
	KeyOther
)

// KeyEvent is one keystroke. Time is the arrival instant; burst detection
// compares consecutive event times, so callers own the clock.
type KeyEvent struct {
	Key  Key
	Rune rune
	Ctrl bool
	Alt  bool
	Meta bool
	Time time.Time
}

type Config struct {
	BurstGap      time.Duration // max gap between keys of one burst
	CommitTimeout time.Duration // silence after which the buffer finalizes
	MinLength     int
	MaxLength     int
}

func DefaultConfig() Config {
	return Config{
		BurstGap:      100 * time.Millisecond,
		CommitTimeout: 100 * time.Millisecond,
		MinLength:     3,
		MaxLength:     50,
	}
}

// Classifier buffers fast keystrokes and emits completed codes. It owns no
// cart or product state; its only side effect is calling the attached emit
// callback. Attach/Detach are explicit so timers never outlive the owner.
type Classifier struct {
	mu      sync.Mutex
	cfg     Config
	focused func() bool
	logger  logger.ZapLogger

	emit     func(code string)
	attached bool

	buf      []rune
	scanning bool
	lastKey  time.Time
	timer    *time.Timer
	gen      uint64 // invalidates commit timers that lost the race
}

func NewClassifier(cfg Config, focused func() bool, log logger.ZapLogger) *Classifier {
	if cfg.BurstGap <= 0 {
		cfg.BurstGap = DefaultConfig().BurstGap
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = DefaultConfig().CommitTimeout
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultConfig().MinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultConfig().MaxLength
	}
	return &Classifier{cfg: cfg, focused: focused, logger: log}
}

// Attach starts the classifier, replacing any previous attachment. Buffer and
// timer state from an earlier attachment is discarded.
func (c *Classifier) Attach(emit func(code string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.emit = emit
	c.attached = true
}

// Detach stops the classifier. A pending commit timer is canceled; one that
// already fired becomes a no-op.
func (c *Classifier) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.emit = nil
	c.attached = false
}

// HandleKey feeds one keystroke into the classifier.
func (c *Classifier) HandleKey(ev KeyEvent) {
	c.mu.Lock()

	if !c.attached {
		c.mu.Unlock()
		return
	}

	switch ev.Key {
	case KeyEscape:
		c.resetLocked()
		c.mu.Unlock()
		return

	case KeyEnter:
		if c.focused != nil && c.focused() {
			c.mu.Unlock()
			return
		}
		// Finalize immediately, bypassing the timer. The buffer is cleared
		// even when the code is invalid.
		code, emit := c.finalizeLocked()
		c.mu.Unlock()
		if emit != nil {
			emit(code)
		}
		return
	}

	if ev.Ctrl || ev.Alt || ev.Meta {
		c.mu.Unlock()
		return
	}
	if c.focused != nil && c.focused() {
		c.mu.Unlock()
		return
	}
	if ev.Key != KeyRune || !isCodeRune(ev.Rune) {
		c.mu.Unlock()
		return
	}

	gap := ev.Time.Sub(c.lastKey)
	switch {
	case c.scanning:
		c.buf = append(c.buf, ev.Rune)
	case !c.lastKey.IsZero() && gap < c.cfg.BurstGap:
		c.scanning = true
		c.buf = append(c.buf, ev.Rune)
	default:
		// A slow keystroke starts a fresh one-character buffer.
		c.buf = []rune{ev.Rune}
	}
	c.lastKey = ev.Time

	c.armTimerLocked()
	c.mu.Unlock()
}

// armTimerLocked (re)starts the commit timer for the current buffer.
func (c *Classifier) armTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.cfg.CommitTimeout, func() {
		c.commitFired(gen)
	})
}

func (c *Classifier) commitFired(gen uint64) {
	c.mu.Lock()
	if !c.attached || gen != c.gen {
		c.mu.Unlock()
		return
	}
	code, emit := c.finalizeLocked()
	c.mu.Unlock()
	if emit != nil {
		emit(code)
	}
}

// finalizeLocked validates and drains the buffer. It returns the completed
// code and the emit callback when the code passed validation; malformed
// buffers are discarded silently.
func (c *Classifier) finalizeLocked() (string, func(string)) {
	code := string(c.buf)
	c.resetLocked()

	if len(code) < c.cfg.MinLength || len(code) > c.cfg.MaxLength {
		if code != "" && c.logger != nil {
			c.logger.Debug("discarding scan buffer outside length bounds", zap.Int("length", len(code)))
		}
		return "", nil
	}
	return code, c.emit
}

func (c *Classifier) resetLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.buf = nil
	c.scanning = false
	c.lastKey = time.Time{}
}

// isCodeRune matches [0-9A-Za-z\-_.].
func isCodeRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r == '-' || r == '_' || r == '.':
		return true
	}
	return false
}
