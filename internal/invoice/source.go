// Package invoice reads paid totals from the reservations table. The sync
// engine uses it to resynchronize its revenue ledger.
package invoice

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/njoerd114/roomsync/internal/model"
	"github.com/njoerd114/roomsync/internal/remote"
)

// Source sums paid reservation amounts.
type Source struct {
	db *gorm.DB
}

// NewSource returns a Source reading through db, normally the remote
// gateway's handle.
func NewSource(db *gorm.DB) *Source {
	return &Source{db: db}
}

// PaidTotal returns the sum of amount_cents over paid reservations.
func (s *Source) PaidTotal(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&remote.ReservationRow{}).
		Where("payment_status = ?", string(model.PaymentPaid)).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("summing paid invoices: %w", remote.Classify(err))
	}
	return total, nil
}
