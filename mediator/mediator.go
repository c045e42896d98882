package mediator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentcoreio/agentcore/capability"
)

// Registry is the subset of AgentRegistry the Mediator needs: handler
// lookup by name and a capability index. Defined here (not imported from
// package registry) so registry can depend on mediator without a cycle;
// registry.AgentRegistry satisfies this interface.
type Registry interface {
	GetHandler(name string) (Handler, bool)
	ListHandlers() []Handler
	FindForCapability(c capability.Capability, exclude string) (string, bool)
}

// Stats tracks per-agent communication counters.
type Stats struct {
	MessagesSent        int64
	MessagesReceived    int64
	DelegationsMade     int64
	DelegationsReceived int64
	AvgResponseTime     time.Duration
	totalResponses      int64
}

// Event is the event stream payload delivered to subscribers:
// "message_sent" as Send records a message, before its handler runs, and
// "delegation_complete" after a delegation's handler returns. Subscriber
// panics are logged, never propagated.
type Event struct {
	Name      string // "message_sent" | "delegation_complete"
	Message   *Message
	Result    *Response
	Timestamp time.Time
}

type pendingCall struct {
	resultCh chan callResult
	done     bool
}

type callResult struct {
	resp *Response
	err  error
}

// Mediator is the typed in-process message bus. It is safe for concurrent
// use from many goroutines; each dispatched message runs its handler in its
// own goroutine and per-message correlation uses a futures table keyed by
// message ID.
type Mediator struct {
	registry Registry
	logger   Logger

	mu      sync.Mutex
	pending map[string]*pendingCall
	stats   map[string]*Stats
	history []*Message
	maxHist int

	subMu       sync.RWMutex
	subscribers map[string][]func(Event)

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// Logger is the minimal logging surface the Mediator needs; *slog.Logger
// satisfies it.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// New constructs a Mediator bound to the given registry for handler lookup.
func New(registry Registry, logger Logger) *Mediator {
	return &Mediator{
		registry:    registry,
		logger:      logger,
		pending:     make(map[string]*pendingCall),
		stats:       make(map[string]*Stats),
		maxHist:     1000,
		subscribers: make(map[string][]func(Event)),
		shutdownCh:  make(chan struct{}),
	}
}

func (m *Mediator) statFor(agent string) *Stats {
	// Caller holds m.mu.
	s, ok := m.stats[agent]
	if !ok {
		s = &Stats{}
		m.stats[agent] = s
	}
	return s
}

func (m *Mediator) recordHistory(msg *Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, msg)
	if len(m.history) > m.maxHist {
		m.history = m.history[len(m.history)-m.maxHist:]
	}
}

// Send dispatches a message. If msg.RequiresResp is true, a future is
// installed keyed by msg.ID, the handler runs concurrently, and Send
// returns its result (or a timeout error once msg.Timeout elapses). If
// RequiresResp is false, dispatch is fire-and-forget and Send returns nil.
func (m *Mediator) Send(ctx context.Context, msg *Message) (*Response, error) {
	m.recordHistory(msg)

	m.mu.Lock()
	m.statFor(msg.Sender).MessagesSent++
	m.statFor(msg.Receiver).MessagesReceived++
	m.mu.Unlock()

	m.notify(Event{Name: "message_sent", Message: msg, Timestamp: time.Now()})

	if !msg.RequiresResp {
		go m.dispatch(context.Background(), msg)
		return nil, nil
	}

	pc := &pendingCall{resultCh: make(chan callResult, 1)}
	m.mu.Lock()
	m.pending[msg.ID] = pc
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, msg.ID)
		m.mu.Unlock()
	}()

	go func() {
		start := time.Now()
		resp, err := m.dispatch(ctx, msg)
		m.mu.Lock()
		st := m.statFor(msg.Receiver)
		st.totalResponses++
		elapsed := time.Since(start)
		st.AvgResponseTime = st.AvgResponseTime + (elapsed-st.AvgResponseTime)/time.Duration(st.totalResponses)
		m.mu.Unlock()
		select {
		case pc.resultCh <- callResult{resp: resp, err: err}:
		default:
		}
	}()

	timeout := msg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-pc.resultCh:
		return r.resp, r.err
	case <-timer.C:
		return nil, fmt.Errorf("message %s to %s timed out after %s", msg.ID, msg.Receiver, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.shutdownCh:
		return nil, fmt.Errorf("mediator shutting down")
	}
}

// dispatch routes a message to its handler and never lets a handler panic
// or return an error escape as anything other than an unsuccessful
// Response.
func (m *Mediator) dispatch(ctx context.Context, msg *Message) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = &Response{Success: false, Error: fmt.Sprintf("handler panic: %v", r)}
			err = nil
		}
	}()

	switch msg.Kind {
	case KindDelegation, KindHelpRequest, KindRequest:
		handler, ok := m.registry.GetHandler(msg.Receiver)
		if !ok {
			return &Response{Success: false, Error: fmt.Sprintf("agent %q not found", msg.Receiver)}, nil
		}
		task, _ := msg.Content["subtask"].(string)
		if task == "" {
			task, _ = msg.Content["task"].(string)
		}
		result, hErr := handler.Execute(task, msg.Context)
		if hErr != nil {
			return &Response{Success: false, Error: hErr.Error()}, nil
		}
		return &Response{Success: true, Payload: result}, nil
	case KindBroadcast:
		handler, ok := m.registry.GetHandler(msg.Receiver)
		if !ok {
			return &Response{Success: false, Error: fmt.Sprintf("agent %q not found", msg.Receiver)}, nil
		}
		result, hErr := handler.OnBroadcast(msg.Content)
		if hErr != nil {
			return &Response{Success: false, Error: hErr.Error()}, nil
		}
		return &Response{Success: true, Payload: result}, nil
	default:
		return &Response{Success: false, Error: fmt.Sprintf("unknown message kind %q", msg.Kind)}, nil
	}
}

// DelegateSubtask constructs a delegation message from `from` to `to` and
// waits (bounded by timeout) for the receiver's result. The receiver is
// looked up in the registry; an absent receiver yields an unsuccessful
// result rather than an error (callers branch on Success).
func (m *Mediator) DelegateSubtask(ctx context.Context, from, to, subtask string, msgCtx map[string]any, priority Priority, timeout time.Duration) *DelegationResult {
	start := time.Now()

	if _, ok := m.registry.GetHandler(to); !ok {
		return &DelegationResult{Success: false, Error: "agent not found", DelegatedTo: to, ExecutionTime: time.Since(start)}
	}

	msg := NewMessage(from, to, KindDelegation)
	msg.Priority = priority
	msg.Content = map[string]any{"subtask": subtask}
	if msgCtx == nil {
		msgCtx = map[string]any{}
	}
	msgCtx["_delegated_from"] = from
	msgCtx["_delegation_id"] = msg.ID
	msg.Context = msgCtx
	if timeout > 0 {
		msg.Timeout = timeout
	}

	m.mu.Lock()
	m.statFor(from).DelegationsMade++
	m.statFor(to).DelegationsReceived++
	m.mu.Unlock()

	resp, err := m.Send(ctx, msg)
	result := &DelegationResult{DelegatedTo: to, ExecutionTime: time.Since(start)}
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		return result
	}
	result.Success = resp.Success
	result.Payload = resp.Payload
	result.Error = resp.Error

	m.notify(Event{Name: "delegation_complete", Message: msg, Result: resp, Timestamp: time.Now()})
	return result
}

// RequestHelp finds an agent offering the capability (excluding `from`)
// and delegates to it. An unsuccessful result with an explanation is
// returned when no agent offers the capability.
func (m *Mediator) RequestHelp(ctx context.Context, from string, c capability.Capability, task string, msgCtx map[string]any) *DelegationResult {
	agent, ok := m.FindAgentForCapability(c, from)
	if !ok {
		return &DelegationResult{Success: false, Error: fmt.Sprintf("no agent available for capability %q", c)}
	}
	return m.DelegateSubtask(ctx, from, agent, task, msgCtx, PriorityNormal, 60*time.Second)
}

// FindAgentForCapability reads the capability index and returns an agent
// other than exclude that offers c, as chosen by Registry.FindForCapability.
func (m *Mediator) FindAgentForCapability(c capability.Capability, exclude string) (string, bool) {
	return m.registry.FindForCapability(c, exclude)
}

// BroadcastToAll invokes every agent's broadcast handler concurrently and
// collects per-agent successes or errors; a single agent's failure never
// aborts the fan-out for the others.
func (m *Mediator) BroadcastToAll(ctx context.Context, from string, content map[string]any) map[string]*Response {
	handlers := m.registry.ListHandlers()
	out := make(map[string]*Response, len(handlers))
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	for _, h := range handlers {
		h := h
		g.Go(func() error {
			msg := NewMessage(from, h.Name(), KindBroadcast)
			msg.Content = content
			msg.RequiresResp = true
			resp, err := m.Send(ctx, msg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out[h.Name()] = &Response{Success: false, Error: err.Error()}
				return nil
			}
			out[h.Name()] = resp
			return nil
		})
	}
	_ = g.Wait() // per-agent errors are captured in `out`, never aborts the fan-out
	return out
}

// Subscribe registers callback to be invoked for the named event
// ("message_sent", before the handler runs, or "delegation_complete", after
// it returns). Callback panics are recovered and logged, never propagated
// to the sender.
func (m *Mediator) Subscribe(event string, cb func(Event)) (unsubscribe func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	idx := len(m.subscribers[event])
	m.subscribers[event] = append(m.subscribers[event], cb)
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		subs := m.subscribers[event]
		if idx < len(subs) {
			subs[idx] = nil
		}
	}
}

func (m *Mediator) notify(ev Event) {
	m.subMu.RLock()
	subs := append([]func(Event){}, m.subscribers[ev.Name]...)
	m.subMu.RUnlock()

	for _, cb := range subs {
		if cb == nil {
			continue
		}
		func(cb func(Event)) {
			defer func() {
				if r := recover(); r != nil && m.logger != nil {
					m.logger.Warn("mediator subscriber panicked", "event", ev.Name, "recover", r)
				}
			}()
			cb(ev)
		}(cb)
	}
}

// GetStats returns a snapshot of per-agent stats.
func (m *Mediator) GetStats(agent string) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stats[agent]; ok {
		return *s
	}
	return Stats{}
}

// HistoryFilter narrows GetHistory results.
type HistoryFilter struct {
	Sender   string
	Receiver string
	Kind     Kind
}

// GetHistory returns up to `limit` most recent messages matching filter
// (zero-valued fields in filter are wildcards).
func (m *Mediator) GetHistory(limit int, filter HistoryFilter) []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Message
	for i := len(m.history) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		msg := m.history[i]
		if filter.Sender != "" && msg.Sender != filter.Sender {
			continue
		}
		if filter.Receiver != "" && msg.Receiver != filter.Receiver {
			continue
		}
		if filter.Kind != "" && msg.Kind != filter.Kind {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Shutdown cancels all pending futures and prevents further Send calls
// from completing successfully. In-flight handler goroutines are allowed
// to finish; they simply have nowhere to deliver their result.
func (m *Mediator) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.shutdownCh)
	})
}

// PendingCount reports the number of in-flight futures; used by tests to
// assert the futures table returns to its pre-send size after completion.
func (m *Mediator) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
