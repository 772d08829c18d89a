package analytics

import (
	"context"
	"sort"
	"time"

	"resort-booking/internal/models"

	"github.com/uptrace/bun"
)

// Service aggregates booking rows for the admin dashboard.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Range restricts aggregation to bookings created in [From, To). Zero bounds are open.
type Range struct {
	From time.Time
	To   time.Time
}

// DailyRevenue is the paid total of one vertical on one calendar day (UTC).
type DailyRevenue struct {
	Date     string          `json:"date"`
	Vertical models.Vertical `json:"vertical"`
	Revenue  float64         `json:"revenue"`
	Bookings int             `json:"bookings"`
}

type statusRow struct {
	Vertical models.Vertical `bun:"vertical"`
	Status   string          `bun:"status"`
	Count    int             `bun:"count"`
	Amount   float64         `bun:"amount"`
}

// Summary returns one entry per vertical, always in stay, adventure, event order,
// with zeroed counters for verticals that have no bookings.
func (s *Service) Summary(ctx context.Context, rng Range) ([]models.VerticalSummary, error) {
	var payments []statusRow
	q := s.db.NewSelect().
		TableExpr("bookings").
		ColumnExpr("vertical").
		ColumnExpr("payment_status AS status").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("COALESCE(SUM(total_amount), 0) AS amount").
		GroupExpr("vertical, payment_status")
	if err := rng.apply(q).Scan(ctx, &payments); err != nil {
		return nil, err
	}

	var refunds []statusRow
	q = s.db.NewSelect().
		TableExpr("bookings").
		ColumnExpr("vertical").
		ColumnExpr("refund_status AS status").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("COALESCE(SUM(refund_amount), 0) AS amount").
		Where("refund_requested = ?", true).
		GroupExpr("vertical, refund_status")
	if err := rng.apply(q).Scan(ctx, &refunds); err != nil {
		return nil, err
	}

	byVertical := map[models.Vertical]*models.VerticalSummary{}
	out := make([]models.VerticalSummary, 0, 3)
	for _, v := range []models.Vertical{models.VerticalStay, models.VerticalAdventure, models.VerticalEvent} {
		out = append(out, models.VerticalSummary{
			Vertical:         v,
			BookingsByStatus: map[string]int{},
			RefundsByStatus:  map[string]int{},
		})
	}
	for i := range out {
		byVertical[out[i].Vertical] = &out[i]
	}

	for _, row := range payments {
		sum, ok := byVertical[row.Vertical]
		if !ok {
			continue
		}
		sum.BookingsByStatus[row.Status] = row.Count
		if row.Status == string(models.StatusSuccess) {
			sum.Revenue = row.Amount
		}
	}
	for _, row := range refunds {
		sum, ok := byVertical[row.Vertical]
		if !ok {
			continue
		}
		sum.RefundsByStatus[row.Status] = row.Count
		switch models.RefundStatus(row.Status) {
		case models.RefundApproved:
			sum.RefundedAmount = row.Amount
		case models.RefundPending:
			sum.PendingRefundRequests = row.Count
		}
	}
	return out, nil
}

// Daily buckets successful payments by paid_at day. Rows are sorted by date, then vertical.
func (s *Service) Daily(ctx context.Context, rng Range) ([]DailyRevenue, error) {
	var paid []models.Booking
	q := s.db.NewSelect().
		Model(&paid).
		Column("vertical", "total_amount", "paid_at").
		Where("payment_status = ?", models.StatusSuccess)
	if !rng.From.IsZero() {
		q = q.Where("paid_at >= ?", rng.From)
	}
	if !rng.To.IsZero() {
		q = q.Where("paid_at < ?", rng.To)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	type key struct {
		date     string
		vertical models.Vertical
	}
	buckets := map[key]*DailyRevenue{}
	for _, b := range paid {
		k := key{b.PaidAt.UTC().Format("2006-01-02"), b.Vertical}
		d, ok := buckets[k]
		if !ok {
			d = &DailyRevenue{Date: k.date, Vertical: k.vertical}
			buckets[k] = d
		}
		d.Revenue += b.TotalAmount
		d.Bookings++
	}

	out := make([]DailyRevenue, 0, len(buckets))
	for _, d := range buckets {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Vertical < out[j].Vertical
	})
	return out, nil
}

func (r Range) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if !r.From.IsZero() {
		q = q.Where("created_at >= ?", r.From)
	}
	if !r.To.IsZero() {
		q = q.Where("created_at < ?", r.To)
	}
	return q
}
