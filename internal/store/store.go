package store

import (
	"context"
	"errors"
	"time"

	"decaldesk/backend/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid input")
	ErrConflict   = errors.New("conflict")
)

type Repository interface {
	// Dealer registry. UpsertDealer inserts the dealer with its given
	// commission or, when the id already exists, updates name/email and
	// preserves the stored commission. EnsureDealer is the
	// create-on-first-sale variant: it never overwrites an existing row.
	// Both are single atomic upserts keyed on the identity reference.
	UpsertDealer(ctx context.Context, dealer domain.Dealer) (*domain.Dealer, error)
	EnsureDealer(ctx context.Context, id string, name string) (*domain.Dealer, error)
	GetDealer(ctx context.Context, id string) (*domain.Dealer, error)
	GetDealersByIDs(ctx context.Context, ids []string) (map[string]domain.Dealer, error)
	ListDealers(ctx context.Context) ([]domain.Dealer, error)
	SetDealerCommission(ctx context.Context, id string, rate float64) (*domain.Dealer, error)

	// Orders. CreateOrder persists the order and its lines as one unit;
	// DeleteOrder removes both or neither.
	CreateOrder(ctx context.Context, order domain.RestockOrder) (*domain.RestockOrder, error)
	GetOrder(ctx context.Context, id int64) (*domain.RestockOrder, error)
	ListOrders(ctx context.Context, dealerID string) ([]domain.RestockOrder, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (*domain.RestockOrder, error)
	DeleteOrder(ctx context.Context, id int64) error

	// Sales ledger. CreateSale appends the record and re-sums the
	// (dealer, week, year) weekly bucket from the ledger in the same
	// transaction, so concurrent writers cannot lose updates.
	CreateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error)
	ListSales(ctx context.Context, dealerID string, limit int) ([]domain.SaleRecord, error)
	GetWeeklyPerformance(ctx context.Context, dealerID string, week int, year int) (*domain.WeeklyPerformance, error)
	ListWeeklyPerformance(ctx context.Context, week int, year int, limit int) ([]domain.WeeklyPerformance, error)
	ListAllTimeTotals(ctx context.Context, limit int) ([]domain.DealerTotals, error)

	// Statistics. A zero since means unbounded (all-time).
	SalesTotals(ctx context.Context, since time.Time) (domain.SalesTotals, error)
	SalesTotalsByDealer(ctx context.Context, since time.Time) (map[string]domain.SalesTotals, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
