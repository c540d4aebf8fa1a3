package daterange_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonpos/backend/internal/daterange"
	"salonpos/backend/internal/domain"
)

func sale(id string, date string, status domain.Status) domain.Sale {
	return domain.Sale{ID: id, Date: date, Status: status}
}

func ids(sales []domain.Sale) []string {
	out := make([]string, 0, len(sales))
	for _, s := range sales {
		out = append(out, s.ID)
	}
	return out
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr bool
	}{
		{name: "Days", start: "2024-03-01", end: "2024-03-31"},
		{name: "Timestamps", start: "2024-03-01T10:00:00Z", end: "2024-03-31T08:00:00.000Z"},
		{name: "BadStart", start: "03/01/2024", end: "2024-03-31", wantErr: true},
		{name: "EmptyEnd", start: "2024-03-01", end: "", wantErr: true},
		{name: "Reversed", start: "2024-03-31", end: "2024-03-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := daterange.Parse(tt.start, tt.end, time.UTC)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrValidation))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), r.Start)
			assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC), r.End)
		})
	}
}

func TestSalesEndOfDayBoundary(t *testing.T) {
	r, err := daterange.Parse("2024-05-01", "2024-05-10", time.UTC)
	require.NoError(t, err)

	sales := []domain.Sale{
		sale("first-instant", "2024-05-01T00:00:00.000Z", domain.StatusActive),
		sale("last-instant", "2024-05-10T23:59:59.999Z", domain.StatusActive),
		sale("next-day", "2024-05-11T00:00:00.000Z", domain.StatusActive),
		sale("day-before", "2024-04-30T23:59:59.999Z", domain.StatusActive),
	}

	assert.Equal(t, []string{"first-instant", "last-instant"}, ids(daterange.Sales(sales, r)))
}

func TestSalesSkipsCancelledAndMalformed(t *testing.T) {
	r, err := daterange.Parse("2024-05-01", "2024-05-31", time.UTC)
	require.NoError(t, err)

	sales := []domain.Sale{
		sale("ok", "2024-05-02T12:00:00.000Z", domain.StatusActive),
		sale("cancelled", "2024-05-02T12:00:00.000Z", domain.StatusCancelled),
		sale("garbage", "not-a-date", domain.StatusActive),
		sale("empty", "", domain.StatusActive),
	}

	assert.Equal(t, []string{"ok"}, ids(daterange.Sales(sales, r)))
}

func TestFilterSalesInvalidRangeIsEmpty(t *testing.T) {
	sales := []domain.Sale{sale("ok", "2024-05-02T12:00:00.000Z", domain.StatusActive)}

	got := daterange.FilterSales(sales, "yesterday", "2024-05-31", time.UTC)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterIsIdempotent(t *testing.T) {
	sales := []domain.Sale{
		sale("a", "2024-05-02T12:00:00.000Z", domain.StatusActive),
		sale("b", "2024-06-02T12:00:00.000Z", domain.StatusActive),
		sale("c", "2024-05-20T08:30:00.000Z", domain.StatusActive),
	}

	once := daterange.FilterSales(sales, "2024-05-01", "2024-05-31", time.UTC)
	twice := daterange.FilterSales(once, "2024-05-01", "2024-05-31", time.UTC)
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"a", "c"}, ids(twice))
}

func TestRangeUsesLocationForDayBoundaries(t *testing.T) {
	loc := time.FixedZone("CST", -6*60*60)
	r, err := daterange.Parse("2024-05-01", "2024-05-01", loc)
	require.NoError(t, err)

	// 2024-05-02T05:00Z is still 23:00 on May 1st at UTC-6.
	assert.True(t, r.Includes("2024-05-02T05:00:00.000Z"))
	assert.False(t, r.Includes("2024-05-02T06:00:00.000Z"))
	// Zone-less stamps are read in the range location.
	assert.True(t, r.Includes("2024-05-01T23:59:59"))
}

func TestExpensesAndCredits(t *testing.T) {
	r, err := daterange.Parse("2024-05-01", "2024-05-31", time.UTC)
	require.NoError(t, err)

	expenses := []domain.Expense{
		{ID: "e1", Date: "2024-05-03T10:00:00.000Z", Status: domain.StatusActive},
		{ID: "e2", Date: "2024-05-03T10:00:00.000Z", Status: domain.StatusCancelled},
		{ID: "e3", Date: "2024-07-03T10:00:00.000Z", Status: domain.StatusActive},
	}
	gotExpenses := daterange.Expenses(expenses, r)
	require.Len(t, gotExpenses, 1)
	assert.Equal(t, "e1", gotExpenses[0].ID)

	credits := []domain.Credit{
		{ID: "c1", CreatedAt: "2024-05-03T10:00:00.000Z", Status: domain.StatusActive},
		{ID: "c2", CreatedAt: "2024-05-04T10:00:00.000Z", Status: domain.StatusCompleted},
		{ID: "c3", CreatedAt: "2024-05-05T10:00:00.000Z", Status: domain.StatusCancelled},
	}
	gotCredits := daterange.Credits(credits, r)
	require.Len(t, gotCredits, 2)
	assert.Equal(t, "c1", gotCredits[0].ID)
	assert.Equal(t, "c2", gotCredits[1].ID)
}
