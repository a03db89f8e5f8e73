package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/JonMunkholm/geoimport/internal/importer"
)

// consoleListener prints stage changes and a percentage line for each job.
type consoleListener struct {
	mu      sync.Mutex
	w       io.Writer
	name    string
	total   int64
	percent int
}

func newConsoleListener(w io.Writer, name string) *consoleListener {
	return &consoleListener{w: w, name: name, percent: -1}
}

func (c *consoleListener) StageStarted(stage importer.Stage, label string, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = total
	c.percent = -1
	fmt.Fprintf(c.w, "%s: %s\n", c.name, label)
}

func (c *consoleListener) Progress(count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.total <= 0 {
		return
	}
	p := int(count * 100 / c.total)
	// Print every 10%.
	if p/10 == c.percent/10 || p > 100 {
		return
	}
	c.percent = p
	fmt.Fprintf(c.w, "%s:   %3d%%\n", c.name, p)
}

func (c *consoleListener) Finished(int)             {}
func (c *consoleListener) FinishedWithError(string) {}
