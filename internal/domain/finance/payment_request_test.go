package finance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaymentRequest(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	p, err := NewPaymentRequest("CR202500001", "Check", now)
	require.NoError(t, err)
	assert.Equal(t, "CR202500001", p.RequestNumber)
	assert.Equal(t, "Check", p.RequestType)

	_, err = NewPaymentRequest("", "Check", now)
	assert.Error(t, err)
	_, err = NewPaymentRequest("CR202500001", "", now)
	assert.Error(t, err)
}

func TestPaymentRequest_Renumber(t *testing.T) {
	created := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)

	p, err := NewPaymentRequest("CR202500001", "Check", created)
	require.NoError(t, err)

	require.NoError(t, p.Renumber("PCR202500004", "Petty Cash", later))
	assert.Equal(t, "PCR202500004", p.RequestNumber)
	assert.Equal(t, "Petty Cash", p.RequestType)
	assert.Equal(t, later, p.UpdatedAt)
	assert.Equal(t, created, p.CreatedAt)

	assert.Error(t, p.Renumber("PCR202500004", "Petty Cash", later))
	assert.Error(t, p.Renumber("", "Check", later))
}

func TestPaymentRequest_ApplyDetails(t *testing.T) {
	p, err := NewPaymentRequest("MCR202500002", "Manager's Check", time.Now())
	require.NoError(t, err)
	vendor := uuid.New()
	charge := " Operations "

	p.ApplyDetails(PaymentRequestDetails{VendorID: &vendor, ChargeTo: &charge}, time.Now())
	assert.Equal(t, &vendor, p.VendorID)
	assert.Equal(t, "Operations", p.ChargeTo)
	assert.Nil(t, p.CostCenterID)
	assert.Empty(t, p.Remarks)
}
