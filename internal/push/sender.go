// internal/push/sender.go
package push

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why a delivery attempt did not end in "delivered".
type Kind string

const (
	KindInvalidToken      Kind = "invalid_token"
	KindAuthConfiguration Kind = "auth_configuration"
	KindTimeout           Kind = "timeout"
	KindUnregistered      Kind = "unregistered"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindUnavailable       Kind = "unavailable"
	KindProviderError     Kind = "provider_error"
	KindCancelled         Kind = "cancelled"
)

// Retryable reports whether a later attempt could succeed without any change
// on our side. Auth configuration failures stay broken until credentials are
// fixed, so they are not retryable.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindQuotaExceeded, KindUnavailable:
		return true
	default:
		return false
	}
}

// Payload is the notification content handed to a provider.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Sender delivers one notification to one device token. A nil error means
// the provider accepted the message.
type Sender interface {
	Name() string
	Send(ctx context.Context, token string, payload Payload) error
}

// TokenValidator is implemented by senders that can reject a token by its
// shape alone, before any provider call.
type TokenValidator interface {
	ValidToken(token string) bool
}

// DeliveryError is returned by senders for classified provider failures.
type DeliveryError struct {
	Kind     Kind
	Provider string
	Err      error
}

func NewDeliveryError(provider string, kind Kind, err error) *DeliveryError {
	return &DeliveryError{Kind: kind, Provider: provider, Err: err}
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// KindOf maps any error returned by a Sender to a Kind. Context errors win
// over provider classification since the attempt was cut short by us.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindProviderError
}
