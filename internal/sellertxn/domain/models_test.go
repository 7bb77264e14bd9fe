package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusReadyForPayout, true},
		{StatusReadyForPayout, StatusPayoutRequested, true},
		{StatusPayoutRequested, StatusPaid, true},
		{StatusPayoutRequested, StatusReadyForPayout, true},

		{StatusPending, StatusPaid, false},
		{StatusPending, StatusPayoutRequested, false},
		{StatusReadyForPayout, StatusPaid, false},
		{StatusReadyForPayout, StatusPending, false},
		{StatusPaid, StatusPending, false},
		{StatusPaid, StatusReadyForPayout, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSellerTransactionValidate(t *testing.T) {
	txn := &SellerTransaction{GrossAmount: 1000, FeeAmount: 100, NetAmount: 900}
	assert.NoError(t, txn.Validate())

	txn = &SellerTransaction{GrossAmount: 1000, FeeAmount: 100, NetAmount: 800}
	assert.ErrorIs(t, txn.Validate(), ErrInvalidSplit)

	txn = &SellerTransaction{GrossAmount: -1, FeeAmount: 0, NetAmount: -1}
	assert.ErrorIs(t, txn.Validate(), ErrInvalidSplit)
}
