package session

import "github.com/pkg/errors"

var (
	ErrNotReady           = errors.New("billing service not ready")
	ErrPurchaseInProgress = errors.New("purchase already in progress")
	ErrAlreadyConnected   = errors.New("connection already started")
	ErrShutdown           = errors.New("manager is shut down")
	ErrInvalidArgument    = errors.New("invalid argument")
)
