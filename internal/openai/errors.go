package openai

import "fmt"

// ConfigError indicates a missing or unusable API credential. It is fatal
// for the direct transport and is surfaced to the caller without retry.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "openai config error: " + e.Reason
}

// TransportError is a non-2xx response from the upstream API. The status and
// body are carried so the caller can decide on retry or display.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("openai upstream returned %d: %s", e.Status, e.Body)
}

// ProtocolError indicates the upstream returned 2xx but the body could not
// be decoded as the expected JSON shape.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return "openai protocol error: " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
