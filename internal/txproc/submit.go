package txproc

import "time"

type submitOptions struct {
	chainID    string
	deviceID   string
	maxRetries int
	retryDelay time.Duration
	metadata   map[string]string
}

// SubmitOption configures a single Submit call.
type SubmitOption func(*submitOptions)

// WithChainID sets the target chain. Without it the payload is decoded as a
// payment record to find the chain.
func WithChainID(chainID string) SubmitOption {
	return func(o *submitOptions) {
		o.chainID = chainID
	}
}

// WithDeviceID records the device that originated the transaction.
func WithDeviceID(deviceID string) SubmitOption {
	return func(o *submitOptions) {
		o.deviceID = deviceID
	}
}

// WithMaxRetries overrides the processor default retry budget.
func WithMaxRetries(n int) SubmitOption {
	return func(o *submitOptions) {
		o.maxRetries = n
	}
}

// WithRetryDelay overrides the processor default retry delay.
func WithRetryDelay(d time.Duration) SubmitOption {
	return func(o *submitOptions) {
		o.retryDelay = d
	}
}

// WithMetadata attaches free-form metadata to the transaction.
func WithMetadata(metadata map[string]string) SubmitOption {
	return func(o *submitOptions) {
		o.metadata = metadata
	}
}
