package llm

import "time"

// RetryConfig bounds how hard the client leans on a single endpoint
// before Complete moves down the fallback chain.
type RetryConfig struct {
	// MaxAttempts is how many times one endpoint is tried per request.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`

	// BackoffMultiplier grows the delay after each failed attempt.
	BackoffMultiplier float64 `json:"backoff_multiplier" yaml:"backoff_multiplier"`

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`
}

// DefaultRetryConfig returns the policy used for roadmap and chat
// completions. Both sit on an interactive HTTP request, so backoff
// stays short; a struggling endpoint is better handled by falling
// through to the next model in the chain than by waiting it out.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        10 * time.Second,
	}
}
