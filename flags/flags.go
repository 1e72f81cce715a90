package flags

import "time"

// todo: make these configurable per deployment
var (
	// DefaultProductCacheTTL bounds how long product details are served
	// without asking the billing service again.
	DefaultProductCacheTTL = 10 * time.Minute

	// DefaultWaitTimeout bounds how long an HTTP request waits for the
	// event that completes it.
	DefaultWaitTimeout = 30 * time.Second

	DefaultStreamBufferSize = 64
	DefaultNotifyTimeout    = time.Second
)
