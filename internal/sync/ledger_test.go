package sync

import (
	"testing"

	"github.com/njoerd114/roomsync/internal/model"
)

func TestPaymentDelta(t *testing.T) {
	cases := []struct {
		from, to model.PaymentStatus
		want     int64
	}{
		{model.PaymentPending, model.PaymentPaid, 1200},
		{model.PaymentRefunded, model.PaymentPaid, 1200},
		{model.PaymentPaid, model.PaymentRefunded, -1200},
		{model.PaymentPaid, model.PaymentPending, -1200},
		{model.PaymentPaid, model.PaymentPaid, 0},
		{model.PaymentPending, model.PaymentRefunded, 0},
	}
	for _, tc := range cases {
		if got := paymentDelta(tc.from, tc.to, 1200); got != tc.want {
			t.Errorf("paymentDelta(%s, %s) = %d, want %d", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestPaymentDelta_RoundTripConserves(t *testing.T) {
	var total int64 = 5000
	total += paymentDelta(model.PaymentPending, model.PaymentPaid, 777)
	total += paymentDelta(model.PaymentPaid, model.PaymentRefunded, 777)
	if total != 5000 {
		t.Errorf("total = %d, want 5000", total)
	}
}
