// Package client is the host-side protocol client (C7): it serializes
// PDUs onto a transport.Transport, reassembles inbound bytes into PDUs,
// correlates synchronous requests with their replies, and routes
// spontaneous Received/ReceivedCompressed frames to an async queue.
package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	canlink "github.com/canyonero/canlink"
	"github.com/canyonero/canlink/pkg/pdu"
	"github.com/canyonero/canlink/pkg/transport"
)

// Mode selects how the client waits for inbound data.
type Mode int

const (
	// Cooperative: waitResponse polls the transport itself with a short
	// inner timeout, in the calling goroutine, until the deadline elapses.
	Cooperative Mode = iota
	// BackgroundPumped: a dedicated goroutine continuously pumps the
	// transport and signals request waiters through a condition variable.
	BackgroundPumped
)

// cooperativePollInterval bounds each inner Receive call in Cooperative
// mode so waitResponse can re-check the caller's deadline.
const cooperativePollInterval = 50 * time.Millisecond

// Stats is a point-in-time snapshot of the client's frame-level counters.
type Stats struct {
	SentPDUs     uint64
	ReceivedPDUs uint64
	Resyncs      uint64
	Timeouts     uint64
	AsyncFrames  uint64
}

// Client owns one transport connection and all correlation state for it.
// All mutable fields are guarded by mu; the mutex is released across
// blocking transport.Receive calls so other goroutines can observe or
// change state (e.g. Disconnect) while a request waits.
type Client struct {
	logger    *slog.Logger
	transport transport.Transport
	decoder   *pdu.Decoder

	mu   sync.Mutex
	cond *sync.Cond

	mode      Mode
	connected bool

	awaitingRequest bool
	expectedType    pdu.Type
	captured        *pdu.PDU
	capturedErr     error

	frameQueue []pdu.PDU

	pumpCancel context.CancelFunc
	pumpWG     sync.WaitGroup

	sentPDUs     uint64
	receivedPDUs uint64
	timeouts     uint64
	asyncFrames  uint64
}

// New builds a Client in Cooperative mode over t. Call Connect before
// issuing requests.
func New(t transport.Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		transport: t,
		decoder:   pdu.NewDecoder(),
		logger:    logger.With("service", "client"),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Connect establishes the underlying transport connection.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", canlink.ErrTransport, err)
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

// Disconnect tears the connection down and fails any pending request with
// ErrNotConnected. Safe to call more than once.
func (c *Client) Disconnect() error {
	c.stopPump()

	c.mu.Lock()
	c.connected = false
	if c.awaitingRequest {
		c.capturedErr = canlink.ErrNotConnected
		c.cond.Broadcast()
	}
	c.mu.Unlock()

	return c.transport.Disconnect()
}

// IsConnected reports whether the client believes its transport usable.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SetMode switches between Cooperative and BackgroundPumped scheduling.
// It fails with ErrRequestInFlight if a synchronous request is currently
// outstanding.
func (c *Client) SetMode(mode Mode) error {
	c.mu.Lock()
	if c.awaitingRequest {
		c.mu.Unlock()
		return canlink.ErrRequestInFlight
	}
	previous := c.mode
	c.mode = mode
	c.mu.Unlock()

	if previous == mode {
		return nil
	}
	if mode == BackgroundPumped {
		c.startPump()
	} else {
		c.stopPump()
	}
	return nil
}

// Stats returns a snapshot of the client's frame-level counters.
func (c *Client) Stats() Stats {
	return Stats{
		SentPDUs:     atomic.LoadUint64(&c.sentPDUs),
		ReceivedPDUs: atomic.LoadUint64(&c.receivedPDUs),
		Resyncs:      c.decoder.Resyncs(),
		Timeouts:     atomic.LoadUint64(&c.timeouts),
		AsyncFrames:  atomic.LoadUint64(&c.asyncFrames),
	}
}

// send writes one PDU to the transport without waiting for any reply.
func (c *Client) send(p pdu.PDU) error {
	if !c.IsConnected() {
		return canlink.ErrNotConnected
	}
	if _, err := c.transport.Send(p.Serialize()); err != nil {
		return fmt.Errorf("%w: %v", canlink.ErrTransport, err)
	}
	atomic.AddUint64(&c.sentPDUs, 1)
	return nil
}

// dispatch classifies one decoded PDU: it is routed to the async queue
// (Received/ReceivedCompressed), captured as the answer to an outstanding
// request (matching type or any 0xE0..0xEF error; a request awaiting
// PeriodicEnded also takes PeriodicStarted or a bare Ok), or dropped at
// debug.
func (c *Client) dispatch(p pdu.PDU) {
	atomic.AddUint64(&c.receivedPDUs, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if p.Type == pdu.Received || p.Type == pdu.ReceivedCompressed {
		c.frameQueue = append(c.frameQueue, p)
		atomic.AddUint64(&c.asyncFrames, 1)
		c.cond.Broadcast()
		return
	}

	matches := p.Type == c.expectedType || p.IsError()
	if c.expectedType == pdu.PeriodicEnded && (p.Type == pdu.PeriodicStarted || p.Type == pdu.Ok) {
		matches = true
	}
	if c.awaitingRequest && matches {
		captured := p
		c.captured = &captured
		c.awaitingRequest = false
		c.cond.Broadcast()
		return
	}

	c.logger.Debug("dropping unsolicited PDU while idle or mismatched", "type", p.Type)
}

// processReceivedData is the pump primitive: it reads whatever the
// transport has to offer before deadline, feeds it to the decoder, and
// dispatches every complete PDU that results. It returns the number of
// PDUs dispatched.
func (c *Client) processReceivedData(deadline time.Time) (int, error) {
	b, err := c.transport.Receive(deadline)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", canlink.ErrTransport, err)
	}
	if len(b) == 0 {
		return 0, nil
	}
	c.decoder.Feed(b)
	n := 0
	for {
		p, ok := c.decoder.Next()
		if !ok {
			break
		}
		c.dispatch(p)
		n++
	}
	return n, nil
}

// waitResponse blocks until a PDU matching expected (or any error class
// PDU) arrives, or deadline elapses. Only one request may be outstanding
// at a time; callers serialize their own requests.
func (c *Client) waitResponse(expected pdu.Type, deadline time.Time) (pdu.PDU, error) {
	c.mu.Lock()
	c.awaitingRequest = true
	c.expectedType = expected
	c.captured = nil
	c.capturedErr = nil
	mode := c.mode
	c.mu.Unlock()

	if mode == BackgroundPumped {
		return c.waitResponsePumped(deadline)
	}
	return c.waitResponseCooperative(expected, deadline)
}

func (c *Client) waitResponseCooperative(expected pdu.Type, deadline time.Time) (pdu.PDU, error) {
	for {
		inner := deadline
		if d := time.Now().Add(cooperativePollInterval); d.Before(inner) {
			inner = d
		}
		if _, err := c.processReceivedData(inner); err != nil {
			c.mu.Lock()
			c.awaitingRequest = false
			c.mu.Unlock()
			return pdu.PDU{}, err
		}

		c.mu.Lock()
		if c.captured != nil {
			p := *c.captured
			c.captured = nil
			c.mu.Unlock()
			return p, nil
		}
		if c.capturedErr != nil {
			err := c.capturedErr
			c.capturedErr = nil
			c.awaitingRequest = false
			c.mu.Unlock()
			return pdu.PDU{}, err
		}
		c.mu.Unlock()

		if !time.Now().Before(deadline) {
			c.mu.Lock()
			c.awaitingRequest = false
			c.mu.Unlock()
			atomic.AddUint64(&c.timeouts, 1)
			return pdu.PDU{}, canlink.ErrTimeout
		}
	}
}

func (c *Client) waitResponsePumped(deadline time.Time) (pdu.PDU, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.captured == nil && c.capturedErr == nil {
		if !time.Now().Before(deadline) {
			c.awaitingRequest = false
			atomic.AddUint64(&c.timeouts, 1)
			return pdu.PDU{}, canlink.ErrTimeout
		}
		waitUntil(c.cond, deadline)
	}
	if c.captured != nil {
		p := *c.captured
		c.captured = nil
		return p, nil
	}
	err := c.capturedErr
	c.capturedErr = nil
	c.awaitingRequest = false
	return pdu.PDU{}, err
}

// waitUntil waits on cond for at most until deadline. sync.Cond has no
// native deadline support, so a timer goroutine broadcasts on expiry.
func waitUntil(cond *sync.Cond, deadline time.Time) {
	timer := time.AfterFunc(time.Until(deadline), cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}
