package session

import (
	"go.uber.org/zap"

	"github.com/code-payments/flipchat-billing/billing"
	"github.com/code-payments/flipchat-billing/event"
)

type Option func(*Options)

func WithLogger(log *zap.Logger) Option {
	return func(o *Options) {
		if log != nil {
			o.Log = log
		}
	}
}

// WithVerifier sets the purchase verifier. Without one, every purchase is
// accepted and logged as unverified.
func WithVerifier(verifier billing.Verifier) Option {
	return func(o *Options) {
		o.Verifier = verifier
	}
}

// WithBus makes the manager emit onto an existing bus.
func WithBus(bus *event.Bus[ContextID, Event]) Option {
	return func(o *Options) {
		if bus != nil {
			o.Bus = bus
		}
	}
}

// WithAcknowledgeOwned controls whether QueryOwnedPurchases acknowledges
// purchased, unacknowledged purchases it reports.
func WithAcknowledgeOwned(acknowledge bool) Option {
	return func(o *Options) {
		o.AcknowledgeOwned = acknowledge
	}
}

type Options struct {
	Log              *zap.Logger
	Verifier         billing.Verifier
	Bus              *event.Bus[ContextID, Event]
	AcknowledgeOwned bool
}

func DefaultOptions() Options {
	return Options{
		Log:              zap.NewNop(),
		AcknowledgeOwned: true,
	}
}

func ApplyOptions(options ...Option) Options {
	applied := DefaultOptions()
	for _, option := range options {
		option(&applied)
	}

	if applied.Bus == nil {
		applied.Bus = event.NewBus[ContextID, Event]()
	}
	if applied.Verifier == nil {
		applied.Verifier = billing.NewUnverified(applied.Log)
	}
	return applied
}
