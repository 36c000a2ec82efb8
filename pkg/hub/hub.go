// Package hub implements the inter-agent communication fabric: a pub/sub
// message hub scoped to a single phase of a single run. Agents coordinate
// through it instead of sharing memory.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stolostron/qe-intelligence/pkg/models"
)

var (
	// ErrHubNotRunning is returned by Publish when the hub is not active.
	ErrHubNotRunning = errors.New("communication hub is not running")
	// ErrAgentNotRegistered is returned when updating an unknown agent.
	ErrAgentNotRegistered = errors.New("agent is not registered with the hub")
)

// defaultQueueSize bounds the central message queue.
const defaultQueueSize = 256

// subscriptionBuffer bounds each subscription's private FIFO. A slow
// subscriber fills its own buffer and backpressures the dispatcher; other
// subscriptions keep their FIFO order.
const subscriptionBuffer = 64

// AgentState is an agent's lifecycle status as tracked by the hub registry.
type AgentState string

const (
	AgentStarting  AgentState = "starting"
	AgentActive    AgentState = "active"
	AgentCompleted AgentState = "completed"
	AgentFailed    AgentState = "failed"
)

// hubState is the hub's own lifecycle.
type hubState int

const (
	stateInactive hubState = iota
	stateActive
	stateStopped
)

// Callback handles one delivered message. Callbacks run on the
// subscription's delivery goroutine; deliveries to one subscription are
// serialized, so a callback never races itself.
type Callback func(*models.Message)

// Registration is an agent's registry entry.
type Registration struct {
	AgentID      string         `json:"agent_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	State        AgentState     `json:"state"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// subscription is one (agent, message types, callback) binding with its own
// delivery goroutine and FIFO buffer.
type subscription struct {
	id       string
	agentID  string
	types    map[string]bool
	callback Callback
	ch       chan *models.Message
	done     chan struct{} // closed by Unsubscribe; ch itself is closed only by Stop
}

// Hub is the per-phase pub/sub fabric. One Hub instance is created per
// (run, phase) by the orchestrator Runtime and disposed at phase end.
// All methods are safe for concurrent use.
type Hub struct {
	runID   string
	phaseID models.PhaseID

	mu     sync.RWMutex
	state  hubState
	agents map[string]*Registration
	subs   map[string]*subscription

	histMu  sync.Mutex
	history []*models.Message

	queue   chan *models.Message
	stopCh  chan struct{}
	doneCh  chan struct{} // closed when the dispatcher exits
	deliver sync.WaitGroup

	logger *slog.Logger
}

// New creates an inactive hub for the given run and phase.
func New(runID string, phaseID models.PhaseID) *Hub {
	return &Hub{
		runID:   runID,
		phaseID: phaseID,
		agents:  make(map[string]*Registration),
		subs:    make(map[string]*subscription),
		queue:   make(chan *models.Message, defaultQueueSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		logger:  slog.With("run_id", runID, "phase_id", phaseID),
	}
}

// Start begins background delivery. Starting an already-active hub is a
// no-op; starting a stopped hub is an error.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case stateActive:
		return nil
	case stateStopped:
		return fmt.Errorf("%w: hub already stopped", ErrHubNotRunning)
	}
	h.state = stateActive
	go h.dispatch()
	h.logger.Debug("Communication hub started")
	return nil
}

// Stop refuses new publishes, drains in-flight deliveries, and waits for
// every subscription goroutine to finish. Idempotent.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.state != stateActive {
		h.mu.Unlock()
		return
	}
	h.state = stateStopped
	h.mu.Unlock()

	// stopCh tells the dispatcher to drain what was already published and
	// exit. The queue itself is never closed: a publisher that passed the
	// state check above may still be sending into it.
	close(h.stopCh)
	<-h.doneCh

	// Dispatcher has forwarded everything; close subscription buffers and
	// wait for their delivery goroutines.
	h.mu.Lock()
	for _, sub := range h.subs {
		close(sub.ch)
	}
	h.subs = make(map[string]*subscription)
	h.mu.Unlock()
	h.deliver.Wait()

	h.logger.Debug("Communication hub stopped", "messages", h.HistoryLen())
}

// RegisterAgent records an agent in the registry with state "starting".
// Idempotent: re-registering keeps the original registration time.
func (h *Hub) RegisterAgent(agentID string, metadata map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.agents[agentID]; exists {
		return
	}
	h.agents[agentID] = &Registration{
		AgentID:      agentID,
		Metadata:     metadata,
		State:        AgentStarting,
		RegisteredAt: time.Now(),
	}
}

// UpdateAgentStatus transitions a registered agent's state.
func (h *Hub) UpdateAgentStatus(agentID string, state AgentState) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	reg, ok := h.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotRegistered, agentID)
	}
	reg.State = state
	return nil
}

// Agents returns a snapshot of the registry.
func (h *Hub) Agents() []Registration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Registration, 0, len(h.agents))
	for _, reg := range h.agents {
		out = append(out, *reg)
	}
	return out
}

// Subscribe binds a callback to messages addressed to agentID (or broadcast)
// whose type is in messageTypes. Returns the subscription ID for
// Unsubscribe, or "" if the hub is not active. Deliveries to this
// subscription are serialized FIFO.
func (h *Hub) Subscribe(agentID string, messageTypes []string, cb Callback) string {
	sub := &subscription{
		id:       uuid.New().String(),
		agentID:  agentID,
		types:    make(map[string]bool, len(messageTypes)),
		callback: cb,
		ch:       make(chan *models.Message, subscriptionBuffer),
		done:     make(chan struct{}),
	}
	for _, t := range messageTypes {
		sub.types[t] = true
	}

	h.mu.Lock()
	if h.state != stateActive {
		// Stop only closes subscriptions it can see in the map; admitting one
		// here would strand its delivery goroutine.
		h.mu.Unlock()
		return ""
	}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	h.deliver.Add(1)
	go h.deliverLoop(sub)
	return sub.id
}

// Unsubscribe removes a subscription. Buffered messages already handed to
// the subscription are still delivered before its goroutine exits.
func (h *Hub) Unsubscribe(subID string) {
	h.mu.Lock()
	sub, ok := h.subs[subID]
	if ok {
		delete(h.subs, subID)
	}
	h.mu.Unlock()
	if ok {
		close(sub.done)
	}
}

// Publish enqueues a message. The message is written to history before this
// method returns, so it is observable via GetMessageHistory even with zero
// subscriptions. Returns the message ID.
func (h *Hub) Publish(sender, target, msgType string, payload map[string]any, priority models.Priority, requiresResponse bool) (string, error) {
	return h.publish(&models.Message{
		ID:               uuid.New().String(),
		Sender:           sender,
		Target:           target,
		Type:             msgType,
		Payload:          payload,
		Timestamp:        time.Now(),
		Priority:         priority,
		RequiresResponse: requiresResponse,
	})
}

// PublishReply publishes a response correlated to an earlier message.
func (h *Hub) PublishReply(sender, target, msgType string, payload map[string]any, correlationID string) (string, error) {
	return h.publish(&models.Message{
		ID:            uuid.New().String(),
		Sender:        sender,
		Target:        target,
		Type:          msgType,
		Payload:       payload,
		Timestamp:     time.Now(),
		Priority:      models.PriorityNormal,
		CorrelationID: correlationID,
	})
}

func (h *Hub) publish(msg *models.Message) (string, error) {
	if !msg.Priority.Valid() {
		msg.Priority = models.PriorityNormal
	}

	h.mu.RLock()
	active := h.state == stateActive
	h.mu.RUnlock()
	if !active {
		return "", ErrHubNotRunning
	}

	h.histMu.Lock()
	h.history = append(h.history, msg)
	h.histMu.Unlock()

	select {
	case h.queue <- msg:
		return msg.ID, nil
	case <-h.stopCh:
		// Recorded in history but not delivered: the hub stopped between the
		// state check and the enqueue.
		return msg.ID, ErrHubNotRunning
	}
}

// dispatch is the hub's single background delivery loop. It preserves
// publish order: each message is forwarded to every matching subscription
// before the next message is taken off the queue.
func (h *Hub) dispatch() {
	defer close(h.doneCh)
	for {
		select {
		case msg := <-h.queue:
			h.forward(msg)
		case <-h.stopCh:
			// Forward what was already enqueued, then exit.
			for {
				select {
				case msg := <-h.queue:
					h.forward(msg)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) forward(msg *models.Message) {
	h.mu.RLock()
	matched := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.matches(msg) {
			matched = append(matched, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range matched {
		select {
		case sub.ch <- msg:
		case <-sub.done:
			// Unsubscribed between the snapshot and the send; drop.
		}
	}
}

func (s *subscription) matches(msg *models.Message) bool {
	if msg.Target != models.BroadcastTarget && msg.Target != s.agentID {
		return false
	}
	return s.types[msg.Type]
}

// deliverLoop invokes the callback for each buffered message, serialized.
// Subscriber panics are recovered and logged; they never affect other
// subscribers or the dispatcher.
func (h *Hub) deliverLoop(sub *subscription) {
	defer h.deliver.Done()
	for {
		select {
		case msg, ok := <-sub.ch:
			if !ok {
				return
			}
			h.invoke(sub, msg)
		case <-sub.done:
			// Drain whatever was already buffered, then exit.
			for {
				select {
				case msg, ok := <-sub.ch:
					if !ok {
						return
					}
					h.invoke(sub, msg)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) invoke(sub *subscription, msg *models.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("Subscriber callback panicked",
				"subscription", sub.id, "agent", sub.agentID,
				"message_type", msg.Type, "panic", r)
		}
	}()
	sub.callback(msg)
}

// HistoryFilter narrows GetMessageHistory results. Zero values match all.
type HistoryFilter struct {
	Sender string
	Target string
	Type   string
	Limit  int
}

// GetMessageHistory returns a snapshot of published messages in FIFO
// insertion order.
func (h *Hub) GetMessageHistory(filter HistoryFilter) []*models.Message {
	h.histMu.Lock()
	defer h.histMu.Unlock()

	out := make([]*models.Message, 0, len(h.history))
	for _, msg := range h.history {
		if filter.Sender != "" && msg.Sender != filter.Sender {
			continue
		}
		if filter.Target != "" && msg.Target != filter.Target {
			continue
		}
		if filter.Type != "" && msg.Type != filter.Type {
			continue
		}
		out = append(out, msg)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// HistoryLen returns the number of messages published so far.
func (h *Hub) HistoryLen() int {
	h.histMu.Lock()
	defer h.histMu.Unlock()
	return len(h.history)
}

// Request publishes a requires-response message and blocks until a reply of
// replyType correlated to it arrives for the sender, or ctx expires. This is
// the PAUSE-and-wait coordination primitive agents use within a phase.
func (h *Hub) Request(ctx context.Context, sender, target, msgType string, payload map[string]any, replyType string) (*models.Message, error) {
	replyCh := make(chan *models.Message, 1)
	msgID := uuid.New().String()

	subID := h.Subscribe(sender, []string{replyType}, func(m *models.Message) {
		if m.CorrelationID == msgID {
			select {
			case replyCh <- m:
			default:
			}
		}
	})
	defer h.Unsubscribe(subID)

	if _, err := h.publish(&models.Message{
		ID:               msgID,
		Sender:           sender,
		Target:           target,
		Type:             msgType,
		Payload:          payload,
		Timestamp:        time.Now(),
		Priority:         models.PriorityHigh,
		RequiresResponse: true,
	}); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
