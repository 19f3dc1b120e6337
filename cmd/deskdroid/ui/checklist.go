package ui

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var spinFrames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type checkStatus uint8

const (
	stepPending checkStatus = iota
	stepRunning
	stepDone
	stepFailed
)

// Step declares one checklist line up front, in apply order.
type Step struct {
	ID    string
	Title string
}

type stepState struct {
	Step
	status  checkStatus
	message string
}

// Checklist renders apply progress as a terminal checklist. Pending steps
// are muted, the running step shows a braille spinner, done steps a
// checkmark, the failed step a red x. In non-interactive mode each
// transition prints a plain line instead of redrawing in place.
type Checklist struct {
	mu            sync.Mutex
	steps         []stepState
	index         map[string]int
	renderedLines int
	frame         int
	stop          chan struct{}
	once          sync.Once
	interactive   bool
}

// NewChecklist draws the initial pending list and starts the spinner.
func NewChecklist(steps []Step) *Checklist {
	c := &Checklist{
		index:       make(map[string]int, len(steps)),
		stop:        make(chan struct{}),
		interactive: IsInteractive(),
	}
	for i, s := range steps {
		c.steps = append(c.steps, stepState{Step: s})
		c.index[s.ID] = i
	}

	if c.interactive {
		c.mu.Lock()
		for _, s := range c.steps {
			icon, label := c.stepStyle(s)
			fmt.Fprintf(os.Stderr, "  %s %s\n", icon, label)
		}
		c.renderedLines = len(c.steps)
		c.mu.Unlock()
		go c.spin()
	}
	return c
}

// Start marks a step running.
func (c *Checklist) Start(id string) { c.set(id, stepRunning, "") }

// Done marks a step complete.
func (c *Checklist) Done(id string) { c.set(id, stepDone, "") }

// Fail marks a step failed with a short reason.
func (c *Checklist) Fail(id, message string) { c.set(id, stepFailed, message) }

func (c *Checklist) set(id string, status checkStatus, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return
	}
	c.steps[i].status = status
	c.steps[i].message = message

	if !c.interactive {
		icon, label := c.stepStyle(c.steps[i])
		line := fmt.Sprintf("  %s %s", icon, label)
		if message != "" {
			line += " " + message
		}
		fmt.Fprintln(os.Stderr, line)
		return
	}
	c.redraw()
}

// Close stops the spinner.
func (c *Checklist) Close() {
	c.once.Do(func() {
		close(c.stop)
	})
}

func (c *Checklist) spin() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.frame = (c.frame + 1) % len(spinFrames)
			c.redraw()
			c.mu.Unlock()
		}
	}
}

// redraw reprints all step lines in place. Caller must hold c.mu.
func (c *Checklist) redraw() {
	if c.renderedLines > 0 {
		fmt.Fprintf(os.Stderr, "\033[%dA", c.renderedLines)
	}
	for _, s := range c.steps {
		icon, label := c.stepStyle(s)
		line := fmt.Sprintf("  %s %s", icon, label)
		if s.message != "" {
			line += " " + Muted(s.message)
		}
		fmt.Fprintf(os.Stderr, "\r%s\033[K\n", line)
	}
	c.renderedLines = len(c.steps)
}

func (c *Checklist) stepStyle(s stepState) (icon, label string) {
	switch s.status {
	case stepRunning:
		if !c.interactive {
			return "-", s.Title
		}
		return Accent(spinFrames[c.frame]), s.Title
	case stepDone:
		return Success("✓"), s.Title
	case stepFailed:
		return ErrorStyle.Render("✗"), ErrorStyle.Render(s.Title)
	default:
		return Muted("●"), Muted(s.Title)
	}
}
