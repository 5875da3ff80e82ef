// Package output carries text from a running program to a display.
//
// A program appends to a Channel from its own goroutine; a Pump drains the
// channel on a fixed interval and hands the text to a Sink.
package output

import (
	"fmt"
	"strings"
	"sync"
)

// Channel is a thread-safe text accumulator. The zero value is ready to use.
type Channel struct {
	mu  sync.Mutex
	buf strings.Builder
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{}
}

// Append adds text to the end of the buffer.
func (c *Channel) Append(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	c.buf.WriteString(text)
	c.mu.Unlock()
}

// Print is an alias for Append.
func (c *Channel) Print(text string) {
	c.Append(text)
}

// Println appends text followed by a newline.
func (c *Channel) Println(text string) {
	c.mu.Lock()
	c.buf.WriteString(text)
	c.buf.WriteByte('\n')
	c.mu.Unlock()
}

// Printf appends formatted text.
func (c *Channel) Printf(format string, args ...any) {
	c.Append(fmt.Sprintf(format, args...))
}

// Write implements io.Writer. It never fails.
func (c *Channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	n, _ := c.buf.Write(p)
	c.mu.Unlock()
	return n, nil
}

// DrainAndClear returns everything appended since the previous drain and
// empties the buffer in one step.
func (c *Channel) DrainAndClear() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len() == 0 {
		return ""
	}
	s := c.buf.String()
	c.buf.Reset()
	return s
}

// Len returns the number of buffered bytes.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}
