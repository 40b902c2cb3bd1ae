package order

import (
	"context"
	"time"

	"go.uber.org/multierr"
)

// Update describes a change to an order that observers should see.
type Update struct {
	OrderID       string
	StoreID       string
	Status        Status
	PaymentStatus PaymentStatus
	UpdatedAt     time.Time
}

// UpdateOf builds the update describing the current state of o.
func UpdateOf(o *Order) Update {
	return Update{
		OrderID:       o.ID,
		StoreID:       o.StoreID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		UpdatedAt:     o.UpdatedAt,
	}
}

// Notifier receives order updates after they have been persisted.
type Notifier interface {
	Publish(ctx context.Context, u Update) error
}

// Notifiers fans an update out to every notifier in the list. All notifiers
// are called even if some fail.
type Notifiers []Notifier

// Publish implements Notifier.
func (n Notifiers) Publish(ctx context.Context, u Update) error {
	var err error
	for _, notifier := range n {
		err = multierr.Append(err, notifier.Publish(ctx, u))
	}
	return err
}
