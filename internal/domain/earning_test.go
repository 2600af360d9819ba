package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creditedLine(t *testing.T, id, amount string, at time.Time) Earning {
	return Earning{
		EarningID: id,
		PartnerID: "ptr_1",
		Kind:      EarningKindCommission,
		PaymentID: "pm_" + id,
		Amount:    money(t, amount),
		Status:    EarningStatusCredited,
		CreatedAt: at,
	}
}

func TestAllocateEarningsTagsWholeLinesOldestFirst(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	lines := []Earning{
		creditedLine(t, "c", "20", base.Add(2*time.Hour)),
		creditedLine(t, "a", "15", base),
		creditedLine(t, "b", "30", base.Add(time.Hour)),
	}
	at := base.Add(24 * time.Hour)

	tagged, err := AllocateEarnings(lines, money(t, "35"), "pay_1", at)
	require.NoError(t, err)

	require.Len(t, tagged, 2)
	assert.Equal(t, []string{"a", "c"}, []string{tagged[0].EarningID, tagged[1].EarningID})
	total := decimal.Zero
	for _, e := range tagged {
		assert.Equal(t, "pay_1", e.PayoutID)
		assert.Equal(t, EarningStatusReserved, e.Status)
		assert.Equal(t, at, e.UpdatedAt)
		total = total.Add(e.Amount)
	}
	assert.Equal(t, "35.00", total.StringFixed(2))
	assert.Equal(t, "15.00", tagged[0].Amount.StringFixed(2))
	assert.Equal(t, "20.00", tagged[1].Amount.StringFixed(2))
}

func TestAllocateEarningsExactCover(t *testing.T) {
	base := time.Now().UTC()
	lines := []Earning{creditedLine(t, "a", "15", base), creditedLine(t, "b", "35", base)}

	tagged, err := AllocateEarnings(lines, money(t, "50"), "pay_2", base)
	require.NoError(t, err)
	assert.Len(t, tagged, 2)
}

func TestAllocateEarningsRejectsAmountWithoutWholeLineCover(t *testing.T) {
	base := time.Now().UTC()
	lines := []Earning{creditedLine(t, "a", "15", base), creditedLine(t, "b", "35", base.Add(time.Minute))}

	_, err := AllocateEarnings(lines, money(t, "20"), "pay_4", base)
	require.ErrorIs(t, err, ErrUnallocatableAmount)
	require.ErrorContains(t, err, "15.00")
}

func TestAllocateEarningsRejectsShortfallAndTaggedLines(t *testing.T) {
	base := time.Now().UTC()
	lines := []Earning{creditedLine(t, "a", "15", base)}

	_, err := AllocateEarnings(lines, money(t, "20"), "pay_3", base)
	require.ErrorIs(t, err, ErrConsistencyViolation)

	tagged := creditedLine(t, "b", "10", base)
	tagged.PayoutID = "pay_other"
	_, err = AllocateEarnings([]Earning{tagged}, money(t, "5"), "pay_3", base)
	require.ErrorIs(t, err, ErrConsistencyViolation)
}
