package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"possync/internal/dto"
	"possync/internal/model"
	"possync/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	dateLayout        = "2006-01-02"
	defaultWindowDays = 30
)

type AnalyticsService interface {
	ProductAnalytics(ctx context.Context, ownerID, productID uuid.UUID, q dto.AnalyticsQuery) (*dto.ProductAnalyticsResponse, error)
}

type analyticsService struct {
	products repository.ProductRepository
	sales    repository.SaleRepository
	cache    *AnalyticsCache
	loc      *time.Location
	now      func() time.Time
}

// NewAnalyticsService builds the aggregator. Calendar days and bucket
// boundaries are computed in loc (UTC when nil). cache may be nil.
func NewAnalyticsService(products repository.ProductRepository, sales repository.SaleRepository, cache *AnalyticsCache, loc *time.Location) AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &analyticsService{products: products, sales: sales, cache: cache, loc: loc, now: time.Now}
}

func (s *analyticsService) ProductAnalytics(ctx context.Context, ownerID, productID uuid.UUID, q dto.AnalyticsQuery) (*dto.ProductAnalyticsResponse, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, productID)
	}

	start, end, err := s.window(q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}
	period := q.Period
	if period == "" {
		period = dto.PeriodWeekly
	}
	basis := q.TimeBasis
	if basis == "" {
		basis = dto.TimeBasisReceived
	}
	verr := &ValidationError{}
	if period != dto.PeriodDaily && period != dto.PeriodWeekly && period != dto.PeriodMonthly {
		verr.add("period", "must be one of daily, weekly, monthly")
	}
	if basis != dto.TimeBasisReceived && basis != dto.TimeBasisClient {
		verr.add("time_basis", "must be one of received, client")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	startStr, endStr := start.Format(dateLayout), end.Format(dateLayout)

	var cached dto.ProductAnalyticsResponse
	cacheKey, hit := s.cache.Get(ctx, productID, &cached, startStr, endStr, period, basis, s.loc.String())
	if hit {
		// Product fields are live; only the aggregation is cached.
		cached.Product = productSummary(product)
		return &cached, nil
	}

	lines, err := s.sales.ListProductLines(ctx, productID, start, end.AddDate(0, 0, 1), basis == dto.TimeBasisClient)
	if err != nil {
		return nil, fmt.Errorf("load sale lines: %w", err)
	}

	resp := &dto.ProductAnalyticsResponse{
		Product:           productSummary(product),
		StartDate:         startStr,
		EndDate:           endStr,
		Period:            period,
		TimeBasis:         basis,
		TotalQuantitySold: decimal.Zero,
		TotalRevenue:      decimal.Zero,
		AverageUnitPrice:  decimal.Zero,
		PeriodBreakdown:   bucketLines(lines, period, s.loc),
	}
	for _, l := range lines {
		resp.TotalQuantitySold = resp.TotalQuantitySold.Add(l.Quantity)
		resp.TotalRevenue = resp.TotalRevenue.Add(l.Subtotal)
	}
	if !resp.TotalQuantitySold.IsZero() {
		resp.AverageUnitPrice = resp.TotalRevenue.DivRound(resp.TotalQuantitySold, 4)
	}

	s.cache.Set(ctx, cacheKey, resp)
	log.Debug().
		Str("product_id", productID.String()).
		Int("lines", len(lines)).
		Int("buckets", len(resp.PeriodBreakdown)).
		Msg("product analytics computed")
	return resp, nil
}

// window resolves the inclusive [start, end] calendar days, both at
// midnight in s.loc. Missing bounds default to the trailing 30 days.
func (s *analyticsService) window(startRaw, endRaw string) (time.Time, time.Time, error) {
	verr := &ValidationError{}
	today := s.now().In(s.loc)
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc)
	if endRaw != "" {
		t, err := time.ParseInLocation(dateLayout, endRaw, s.loc)
		if err != nil {
			verr.add("end_date", "must be a date (YYYY-MM-DD)")
		} else {
			end = t
		}
	}
	start := end.AddDate(0, 0, -defaultWindowDays)
	if startRaw != "" {
		t, err := time.ParseInLocation(dateLayout, startRaw, s.loc)
		if err != nil {
			verr.add("start_date", "must be a date (YYYY-MM-DD)")
		} else {
			start = t
		}
	}
	if err := verr.orNil(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fieldError("start_date", "must not be after end_date")
	}
	return start, end, nil
}

// bucketStart aligns t to the start of its period in loc: the day itself,
// the Monday of its ISO week, or the first of its month.
func bucketStart(t time.Time, period string, loc *time.Location) time.Time {
	t = t.In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	switch period {
	case dto.PeriodDaily:
		return day
	case dto.PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	default:
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	}
}

// bucketLines groups lines by period start. Periods without sales are
// omitted; the result is sorted ascending.
func bucketLines(lines []repository.ProductLine, period string, loc *time.Location) []dto.PeriodBucket {
	byStart := make(map[time.Time]*dto.PeriodBucket)
	var starts []time.Time
	for _, l := range lines {
		key := bucketStart(l.SoldAt, period, loc)
		b, ok := byStart[key]
		if !ok {
			b = &dto.PeriodBucket{Date: key.Format(dateLayout), Quantity: decimal.Zero, Revenue: decimal.Zero}
			byStart[key] = b
			starts = append(starts, key)
		}
		b.Quantity = b.Quantity.Add(l.Quantity)
		b.Revenue = b.Revenue.Add(l.Subtotal)
		b.Lines++
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	buckets := make([]dto.PeriodBucket, 0, len(starts))
	for _, k := range starts {
		buckets = append(buckets, *byStart[k])
	}
	return buckets
}

func productSummary(p *model.Product) dto.ProductSummary {
	sum := dto.ProductSummary{
		ID:         p.ID.String(),
		SKU:        p.SKU,
		Name:       p.Name,
		Unit:       p.Unit,
		IsVolatile: p.IsVolatile,
		Price:      p.Price,
	}
	if p.IsTracked() {
		sum.Stock = p.Stock
		sum.ReorderLevel = p.ReorderLevel
	}
	return sum
}
