package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/code-payments/flipchat-billing/billing"
	"github.com/code-payments/flipchat-billing/event"
)

// purchaseSession is the single purchase attempt in flight. The zero value
// is the idle state.
type purchaseSession struct {
	context    ContextID
	consumable bool

	// seq identifies the attempt, so results for an attempt that already
	// ended can be told apart from the current one.
	seq uint64
}

// Manager mediates between callers and the billing service. It owns the
// connection readiness and the single purchase session, and reports every
// outcome as an Event.
//
// Public operations never block on the billing service: they accept or
// reject synchronously and deliver results through the handlers registered
// with AddHandler.
type Manager struct {
	log              *zap.Logger
	client           billing.Client
	verifier         billing.Verifier
	bus              *event.Bus[ContextID, Event]
	acknowledgeOwned bool

	// Cancelled on shutdown. Every outstanding wait on the billing service
	// selects on it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	ready   bool
	started bool
	closed  bool
	session purchaseSession
	lastSeq uint64
}

func New(client billing.Client, opts ...Option) *Manager {
	o := ApplyOptions(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		log:              o.Log,
		client:           client,
		verifier:         o.Verifier,
		bus:              o.Bus,
		acknowledgeOwned: o.AcknowledgeOwned,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// AddHandler registers h for every event. Each call into h is skipped once
// the manager is shut down, including the remaining handlers of a delivery
// during which Shutdown was called.
func (m *Manager) AddHandler(h event.Handler[ContextID, Event]) {
	m.bus.AddHandler(event.HandlerFunc[ContextID, Event](func(id ContextID, e Event) {
		if m.ctx.Err() != nil {
			return
		}
		h.OnEvent(id, e)
	}))
}

// Connect starts the billing service connection. It may be called once; the
// outcome is reported as a Ready event. There is no automatic retry.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShutdown
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.started = true
	m.mu.Unlock()

	m.log.Info("Connecting to billing service")
	l := &listener{m: m}
	m.client.StartConnection(l, l)
	return nil
}

// Ready reports whether the billing service can currently be used.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ready
}

// Shutdown releases the billing connection and drops every event that
// would otherwise still be emitted. It is idempotent and safe to call while
// callbacks are in flight, including from a handler.
//
// Shutdown does not wait for deliveries on other goroutines. A handler call
// that already started may still run to completion after Shutdown returns,
// but no handler call starts afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.ready = false
	m.session = purchaseSession{}
	m.mu.Unlock()

	m.log.Info("Shutting down")
	m.cancel()

	if m.client.IsReady() {
		m.client.EndConnection()
	}
	m.log.Info("Done shutting down")
}

func (m *Manager) onSetupFinished(result billing.Result) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.ready = result.IsOK()
	m.mu.Unlock()

	if result.IsOK() {
		m.log.Info("Billing service connected")
	} else {
		m.log.Warn("Billing service setup failed",
			zap.Stringer("code", result.Code),
			zap.String("debug_message", result.DebugMessage),
		)
	}
	m.emit(Ready{Ready: result.IsOK()})
}

func (m *Manager) onDisconnected() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.ready = false
	m.mu.Unlock()

	m.log.Info("Billing service disconnected")
	m.emit(Ready{Ready: false})
}

func (m *Manager) emit(e Event) {
	if m.ctx.Err() != nil {
		m.log.Debug("Dropping event after shutdown", zap.Uint64("context", uint64(e.ContextID())))
		return
	}
	m.bus.OnEvent(e.ContextID(), e)
}

// await hands the single value of a billing result channel to fn on a
// separate goroutine. Nothing is delivered once the manager is shut down.
func await[T any](m *Manager, ch <-chan T, fn func(T)) {
	go func() {
		select {
		case v := <-ch:
			if m.ctx.Err() != nil {
				return
			}
			fn(v)
		case <-m.ctx.Done():
		}
	}()
}

// listener receives the billing client's callbacks.
type listener struct {
	m *Manager
}

func (l *listener) OnBillingSetupFinished(result billing.Result) {
	l.m.onSetupFinished(result)
}

func (l *listener) OnBillingServiceDisconnected() {
	l.m.onDisconnected()
}

func (l *listener) OnPurchasesUpdated(result billing.Result, purchases []*billing.Purchase) {
	l.m.onPurchasesUpdated(result, purchases)
}
