package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stride-fit/stride/internal/db"
	"github.com/stride-fit/stride/internal/push"
)

// ProtectedTransport wraps a push transport with a CircuitBreaker.
// When the downstream keeps failing the circuit opens and deliveries fail
// fast; the push channel still treats that as an ordinary delivery error.
type ProtectedTransport struct {
	transport push.Transport
	breaker   *CircuitBreaker
	logger    *zap.Logger
}

// NewProtectedTransport wraps a transport with circuit breaker protection.
func NewProtectedTransport(transport push.Transport, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedTransport {
	return &ProtectedTransport{
		transport: transport,
		breaker:   breaker,
		logger:    logger,
	}
}

// Deliver attempts the delivery through the circuit breaker.
func (p *ProtectedTransport) Deliver(ctx context.Context, sub *db.PushSubscription, n push.Notice) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected push delivery",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("reminder_id", n.ReminderID.String()),
			zap.String("state", p.breaker.GetState().String()),
		)
		return fmt.Errorf("%w: %s transport unavailable", ErrCircuitOpen, p.breaker.config.Name)
	}

	err := p.transport.Deliver(ctx, sub, n)
	if err != nil {
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// Kind delegates to the underlying transport.
func (p *ProtectedTransport) Kind() string {
	return p.transport.Kind()
}

// Breaker returns the underlying circuit breaker for monitoring.
func (p *ProtectedTransport) Breaker() *CircuitBreaker {
	return p.breaker
}
