package flow

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/attorney/internal/domain"
	"github.com/gosuda/attorney/internal/metrics"
)

// Correlator routes responses back to the caller waiting on the same
// requestId. Responses nobody waits for are discarded.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]chan *Response
	metrics *metrics.Metrics
}

func NewCorrelator(m *metrics.Metrics) *Correlator {
	return &Correlator{pending: make(map[string]chan *Response), metrics: m}
}

// Register marks requestID as outstanding and returns the channel its
// response arrives on.
func (c *Correlator) Register(requestID string) (<-chan *Response, error) {
	if requestID == "" {
		return nil, fmt.Errorf("flow.Correlator.Register: empty request id: %w", domain.ErrProtocol)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[requestID]; ok {
		return nil, fmt.Errorf("flow.Correlator.Register(%s): request id already outstanding: %w", requestID, domain.ErrProtocol)
	}
	ch := make(chan *Response, 1)
	c.pending[requestID] = ch
	return ch, nil
}

// Cancel stops waiting for requestID. A response arriving later is discarded.
func (c *Correlator) Cancel(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

// Deliver hands resp to its waiter and reports whether one existed.
func (c *Correlator) Deliver(resp *Response) bool {
	c.mu.Lock()
	ch, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.mu.Unlock()

	if !ok {
		c.metrics.ResponseDiscarded()
		log.Debug().
			Str("request_id", resp.RequestID).
			Str("in_reply_to", string(resp.InReplyTo)).
			Msg("flow: discarding uncorrelated response")
		return false
	}
	ch <- resp
	return true
}

// Outstanding returns the number of requests awaiting a response.
func (c *Correlator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
