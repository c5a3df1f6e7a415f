package client

import (
	"context"
	"time"
)

// pumpPollInterval bounds each inner Receive call the background pump
// makes, so it can notice cancellation promptly.
const pumpPollInterval = 100 * time.Millisecond

// startPump launches the background-pumped worker if it is not already
// running. Mirrors the teacher's Process(ctx) goroutine lifecycle: a
// cancelable context plus a WaitGroup the stop path blocks on.
func (c *Client) startPump() {
	c.mu.Lock()
	if c.pumpCancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.pumpCancel = cancel
	c.mu.Unlock()

	c.pumpWG.Add(1)
	go func() {
		defer c.pumpWG.Done()
		c.runPump(ctx)
	}()
}

// stopPump cancels the background worker and waits for it to exit. A
// no-op if the pump is not running.
func (c *Client) stopPump() {
	c.mu.Lock()
	cancel := c.pumpCancel
	c.pumpCancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.pumpWG.Wait()
}

func (c *Client) runPump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		deadline := time.Now().Add(pumpPollInterval)
		if _, err := c.processReceivedData(deadline); err != nil {
			c.mu.Lock()
			c.connected = false
			if c.awaitingRequest {
				c.capturedErr = err
				c.cond.Broadcast()
			}
			c.mu.Unlock()
			return
		}
	}
}
