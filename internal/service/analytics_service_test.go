package service

import (
	"context"
	"testing"
	"time"

	"possync/internal/dto"
	"possync/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalytics(f *fixture, now time.Time) *analyticsService {
	svc := NewAnalyticsService(f.products, f.sales, nil, time.UTC).(*analyticsService)
	svc.now = func() time.Time { return now }
	return svc
}

// seedSale stores a sale of one line directly, bypassing ingestion so the
// receipt time can be chosen.
func (f *fixture) seedSale(t *testing.T, p *model.Product, qty, price string, receivedAt time.Time) {
	t.Helper()
	q, pr := dec(qty), dec(price)
	sale := &model.Sale{
		ID: uuid.New(), ExternalID: uuid.NewString(), OwnerID: f.owner,
		TotalAmount: q.Mul(pr), ReceivedAt: receivedAt, ClientCreatedAt: receivedAt.Add(-48 * time.Hour),
	}
	sale.Items = []model.SaleItem{{
		ID: uuid.New(), SaleID: sale.ID, ProductID: p.ID, Quantity: q, UnitPrice: pr, Subtotal: q.Mul(pr),
	}}
	require.NoError(t, f.sales.Create(context.Background(), nil, sale))
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestProductAnalytics_BreadJanuaryWeekly(t *testing.T) {
	f := newFixture()
	bread := f.bread()
	f.seedSale(t, bread, "10.5", "2.00", day("2026-01-06 09:30")) // Tue, week of Mon 01-05
	f.seedSale(t, bread, "113", "1.50", day("2026-01-20 18:00"))  // Tue, week of Mon 01-19
	f.seedSale(t, bread, "4", "1.00", day("2026-02-01 00:00"))    // after end_date

	svc := newAnalytics(f, day("2026-03-01 12:00"))
	resp, err := svc.ProductAnalytics(context.Background(), f.owner, bread.ID, dto.AnalyticsQuery{
		StartDate: "2026-01-01", EndDate: "2026-01-31", Period: dto.PeriodWeekly,
	})
	require.NoError(t, err)

	assert.True(t, dec("123.5").Equal(resp.TotalQuantitySold), "qty %s", resp.TotalQuantitySold)
	assert.True(t, dec("190.5").Equal(resp.TotalRevenue), "revenue %s", resp.TotalRevenue)
	assert.True(t, dec("1.5425").Equal(resp.AverageUnitPrice), "avg %s", resp.AverageUnitPrice)
	assert.Equal(t, "2026-01-01", resp.StartDate)
	assert.Equal(t, "2026-01-31", resp.EndDate)
	assert.Equal(t, dto.TimeBasisReceived, resp.TimeBasis)

	require.Len(t, resp.PeriodBreakdown, 2)
	assert.Equal(t, "2026-01-05", resp.PeriodBreakdown[0].Date)
	assert.True(t, dec("10.5").Equal(resp.PeriodBreakdown[0].Quantity))
	assert.True(t, dec("21").Equal(resp.PeriodBreakdown[0].Revenue))
	assert.Equal(t, 1, resp.PeriodBreakdown[0].Lines)
	assert.Equal(t, "2026-01-19", resp.PeriodBreakdown[1].Date)
	assert.True(t, dec("169.5").Equal(resp.PeriodBreakdown[1].Revenue))

	assert.True(t, resp.Product.IsVolatile)
	assert.Nil(t, resp.Product.Stock)
	assert.Nil(t, resp.Product.ReorderLevel)
}

func TestProductAnalytics_EndDateIsInclusive(t *testing.T) {
	f := newFixture()
	bread := f.bread()
	f.seedSale(t, bread, "1", "1", day("2026-01-31 23:59"))

	resp, err := newAnalytics(f, day("2026-03-01 00:00")).ProductAnalytics(context.Background(), f.owner, bread.ID,
		dto.AnalyticsQuery{StartDate: "2026-01-31", EndDate: "2026-01-31", Period: dto.PeriodDaily})
	require.NoError(t, err)
	assert.True(t, dec("1").Equal(resp.TotalQuantitySold))
	require.Len(t, resp.PeriodBreakdown, 1)
	assert.Equal(t, "2026-01-31", resp.PeriodBreakdown[0].Date)
}

func TestProductAnalytics_MonthlyAndDailyBuckets(t *testing.T) {
	f := newFixture()
	juice := f.juice(10, 2)
	f.seedSale(t, juice, "1", "1", day("2026-01-15 10:00"))
	f.seedSale(t, juice, "2", "1", day("2026-01-15 11:00"))
	f.seedSale(t, juice, "3", "1", day("2026-02-03 10:00"))
	svc := newAnalytics(f, day("2026-03-01 00:00"))

	monthly, err := svc.ProductAnalytics(context.Background(), f.owner, juice.ID,
		dto.AnalyticsQuery{StartDate: "2026-01-01", EndDate: "2026-02-28", Period: dto.PeriodMonthly})
	require.NoError(t, err)
	require.Len(t, monthly.PeriodBreakdown, 2)
	assert.Equal(t, "2026-01-01", monthly.PeriodBreakdown[0].Date)
	assert.True(t, dec("3").Equal(monthly.PeriodBreakdown[0].Quantity))
	assert.Equal(t, 2, monthly.PeriodBreakdown[0].Lines)
	assert.Equal(t, "2026-02-01", monthly.PeriodBreakdown[1].Date)

	daily, err := svc.ProductAnalytics(context.Background(), f.owner, juice.ID,
		dto.AnalyticsQuery{StartDate: "2026-01-01", EndDate: "2026-02-28", Period: dto.PeriodDaily})
	require.NoError(t, err)
	require.Len(t, daily.PeriodBreakdown, 2, "days without sales are omitted")
	assert.Equal(t, "2026-01-15", daily.PeriodBreakdown[0].Date)
	assert.Equal(t, "2026-02-03", daily.PeriodBreakdown[1].Date)

	require.NotNil(t, daily.Product.Stock)
	assert.Equal(t, 10, *daily.Product.Stock)
}

func TestProductAnalytics_WeekBucketMayStartBeforeWindow(t *testing.T) {
	f := newFixture()
	bread := f.bread()
	f.seedSale(t, bread, "1", "1", day("2026-01-01 08:00")) // Thursday

	resp, err := newAnalytics(f, day("2026-03-01 00:00")).ProductAnalytics(context.Background(), f.owner, bread.ID,
		dto.AnalyticsQuery{StartDate: "2026-01-01", EndDate: "2026-01-07"})
	require.NoError(t, err)
	assert.Equal(t, dto.PeriodWeekly, resp.Period, "weekly is the default period")
	require.Len(t, resp.PeriodBreakdown, 1)
	assert.Equal(t, "2025-12-29", resp.PeriodBreakdown[0].Date)
}

func TestProductAnalytics_DefaultWindowIsTrailing30Days(t *testing.T) {
	f := newFixture()
	bread := f.bread()
	f.seedSale(t, bread, "1", "1", day("2026-02-10 12:00"))
	f.seedSale(t, bread, "5", "1", day("2026-01-01 12:00")) // outside

	resp, err := newAnalytics(f, day("2026-03-01 15:00")).ProductAnalytics(context.Background(), f.owner, bread.ID, dto.AnalyticsQuery{})
	require.NoError(t, err)
	assert.Equal(t, "2026-01-30", resp.StartDate)
	assert.Equal(t, "2026-03-01", resp.EndDate)
	assert.True(t, dec("1").Equal(resp.TotalQuantitySold))
}

func TestProductAnalytics_ClientTimeBasis(t *testing.T) {
	f := newFixture()
	bread := f.bread()
	// Received on the 3rd, created on the device on the 1st.
	f.seedSale(t, bread, "2", "1", day("2026-01-03 12:00"))
	svc := newAnalytics(f, day("2026-03-01 00:00"))
	q := dto.AnalyticsQuery{StartDate: "2026-01-01", EndDate: "2026-01-01", Period: dto.PeriodDaily}

	received, err := svc.ProductAnalytics(context.Background(), f.owner, bread.ID, q)
	require.NoError(t, err)
	assert.True(t, received.TotalQuantitySold.IsZero())

	q.TimeBasis = dto.TimeBasisClient
	client, err := svc.ProductAnalytics(context.Background(), f.owner, bread.ID, q)
	require.NoError(t, err)
	assert.True(t, dec("2").Equal(client.TotalQuantitySold))
}

func TestProductAnalytics_NoSales_ZeroAverage(t *testing.T) {
	f := newFixture()
	bread := f.bread()
	resp, err := newAnalytics(f, day("2026-03-01 00:00")).ProductAnalytics(context.Background(), f.owner, bread.ID, dto.AnalyticsQuery{})
	require.NoError(t, err)
	assert.True(t, resp.AverageUnitPrice.IsZero())
	assert.True(t, resp.TotalRevenue.IsZero())
	assert.NotNil(t, resp.PeriodBreakdown)
	assert.Empty(t, resp.PeriodBreakdown)
}

func TestProductAnalytics_Errors(t *testing.T) {
	f := newFixture()
	bread := f.bread()
	foreign := f.products.add(model.Product{OwnerID: uuid.New(), SKU: "F", Name: "F", IsVolatile: true})
	svc := newAnalytics(f, day("2026-03-01 00:00"))
	ctx := context.Background()

	_, err := svc.ProductAnalytics(ctx, f.owner, foreign.ID, dto.AnalyticsQuery{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ProductAnalytics(ctx, f.owner, uuid.New(), dto.AnalyticsQuery{})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.ProductAnalytics(ctx, f.owner, bread.ID, dto.AnalyticsQuery{StartDate: "2026-02-01", EndDate: "2026-01-01"})
	assert.Contains(t, requireFields(t, err), "start_date")

	_, err = svc.ProductAnalytics(ctx, f.owner, bread.ID, dto.AnalyticsQuery{EndDate: "31/01/2026"})
	assert.Contains(t, requireFields(t, err), "end_date")

	_, err = svc.ProductAnalytics(ctx, f.owner, bread.ID, dto.AnalyticsQuery{Period: "yearly"})
	assert.Contains(t, requireFields(t, err), "period")
}

func TestBucketStart(t *testing.T) {
	cases := []struct {
		at, period, want string
	}{
		{"2026-01-05 00:00", dto.PeriodWeekly, "2026-01-05"}, // Monday
		{"2026-01-11 23:59", dto.PeriodWeekly, "2026-01-05"}, // Sunday
		{"2026-01-12 00:00", dto.PeriodWeekly, "2026-01-12"},
		{"2026-03-31 10:00", dto.PeriodMonthly, "2026-03-01"},
		{"2026-03-31 10:00", dto.PeriodDaily, "2026-03-31"},
	}
	for _, tc := range cases {
		got := bucketStart(day(tc.at), tc.period, time.UTC)
		assert.Equal(t, tc.want, got.Format(dateLayout), "%s %s", tc.period, tc.at)
	}
}

func TestBucketStart_UsesReportTimezone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 02:00 UTC on Monday is still Sunday evening at UTC-5.
	got := bucketStart(day("2026-01-12 02:00"), dto.PeriodWeekly, loc)
	assert.Equal(t, "2026-01-05", got.Format(dateLayout))
}
