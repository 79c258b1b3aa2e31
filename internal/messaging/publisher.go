package messaging

import (
	"context"

	"github.com/fieldserve/balance-ledger/internal/domain"
)

// Publisher defines the interface for publishing balance-change events to
// the message broker. Publishing is best-effort: the ledger never fails an
// operation because an event could not be delivered.
type Publisher interface {
	// PublishBalanceChanged publishes a committed balance transition
	PublishBalanceChanged(ctx context.Context, event *domain.BalanceChangedEvent) error
	// Close closes the connection
	Close()
}
