package mcpclient

import (
	"context"
	"time"
)

// SetSleep replaces the delay used between Connect attempts.
func (c *Client) SetSleep(f func(context.Context, time.Duration) error) {
	c.sleep = f
}
