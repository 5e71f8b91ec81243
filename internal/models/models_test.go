package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayo6706/twinvest-bridge/internal/models"
)

func TestInvoicePresentation(t *testing.T) {
	inv := models.Invoice{Amount: 10_000, DiscountBps: 525, FundedAmount: 2_500}
	assert.Equal(t, "0.0525", inv.DiscountRate().String())
	assert.Equal(t, "0.25", inv.FundingProgress().String())
	assert.Equal(t, uint64(7_500), inv.Remaining())

	over := models.Invoice{Amount: 100, FundedAmount: 150}
	assert.Equal(t, "1", over.FundingProgress().String())
	assert.Zero(t, over.Remaining())
	assert.Equal(t, "0", models.Invoice{}.FundingProgress().String())
}
