package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"decaldesk/backend/internal/cache"
	"decaldesk/backend/internal/catalog"
	"decaldesk/backend/internal/domain"
	"decaldesk/backend/internal/isoweek"
	"decaldesk/backend/internal/metrics"
	"decaldesk/backend/internal/store"
	"decaldesk/backend/internal/xid"
)

// ErrForbidden marks operations the actor's role does not allow. The
// caller identity is always passed in explicitly, never smuggled
// through the context.
var ErrForbidden = errors.New("forbidden")

const leaderboardSize = 10

type Service struct {
	repo    store.Repository
	catalog *catalog.Provider
	boards  cache.LeaderboardCache
	stats   *metrics.Metrics
	ttl     time.Duration
	now     func() time.Time
}

func New(repo store.Repository, provider *catalog.Provider, boards cache.LeaderboardCache, stats *metrics.Metrics, ttl time.Duration) *Service {
	if boards == nil {
		boards = cache.NoopLeaderboardCache{}
	}
	if ttl < time.Second {
		ttl = 30 * time.Second
	}

	return &Service{
		repo:    repo,
		catalog: provider,
		boards:  boards,
		stats:   stats,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Tests use it to pin week buckets
// and timeframe windows.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// --- restock orders ---

func (s *Service) CreateOrder(ctx context.Context, actor domain.Actor, req domain.OrderCreateRequest) (*domain.RestockOrder, error) {
	if actor.Role != domain.RoleDealer {
		return nil, ErrForbidden
	}
	if len(req.Lines) == 0 {
		return nil, store.ErrValidation
	}

	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		name := strings.TrimSpace(line.Name)
		if name == "" || line.Quantity < 1 {
			return nil, store.ErrValidation
		}
		lines = append(lines, domain.OrderLine{
			Name:     name,
			Category: strings.TrimSpace(line.Category),
			Quantity: line.Quantity,
		})
	}

	if _, err := s.repo.GetDealer(ctx, actor.Username); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateOrder(ctx, domain.RestockOrder{
		DealerID:  actor.Username,
		Status:    domain.OrderStatusPending,
		Timestamp: s.now(),
		Lines:     lines,
	})
	if err != nil {
		return nil, err
	}

	s.stats.OrdersCreated.Inc()
	s.logAudit(ctx, actor, "order_create", "order", strconv.FormatInt(created.ID, 10), fmt.Sprintf("lines=%d", len(created.Lines)))
	return created, nil
}

// ListOrders returns every order for admins, or the caller's own orders
// when the actor is a dealer or asked for mineOnly. The stats block is
// derived from the same snapshot that is returned.
func (s *Service) ListOrders(ctx context.Context, actor domain.Actor, mineOnly bool) (*domain.OrderListResponse, error) {
	dealerID := ""
	if actor.Role == domain.RoleDealer || mineOnly {
		dealerID = actor.Username
	}

	orders, err := s.repo.ListOrders(ctx, dealerID)
	if err != nil {
		return nil, err
	}

	if err := s.attachDealerNames(ctx, orders); err != nil {
		return nil, err
	}

	stats := domain.OrderListStats{
		Orders:   len(orders),
		ByStatus: map[string]int{},
	}
	for _, order := range orders {
		stats.ByStatus[order.Status]++
		stats.Lines += len(order.Lines)
		for _, line := range order.Lines {
			stats.TotalQuantity += line.Quantity
		}
	}

	return &domain.OrderListResponse{Orders: orders, Stats: stats}, nil
}

func (s *Service) attachDealerNames(ctx context.Context, orders []domain.RestockOrder) error {
	if len(orders) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(orders))
	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		if !seen[order.DealerID] {
			seen[order.DealerID] = true
			ids = append(ids, order.DealerID)
		}
	}

	dealers, err := s.repo.GetDealersByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range orders {
		if dealer, ok := dealers[orders[i].DealerID]; ok {
			orders[i].DisplayName = dealer.Name
		} else {
			orders[i].DisplayName = orders[i].DealerID
		}
	}
	return nil
}

func (s *Service) SetOrderStatus(ctx context.Context, actor domain.Actor, id int64, req domain.OrderStatusUpdateRequest) (*domain.RestockOrder, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if !domain.ValidOrderStatus(req.Status) {
		return nil, store.ErrValidation
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, id, req.Status)
	if err != nil {
		return nil, err
	}

	s.stats.OrderStatusUpdates.WithLabelValues(req.Status).Inc()
	s.logAudit(ctx, actor, "order_status_update", "order", strconv.FormatInt(id, 10), req.Status)
	return updated, nil
}

func (s *Service) DeleteOrder(ctx context.Context, actor domain.Actor, id int64) error {
	if actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}

	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}

	s.stats.OrdersDeleted.Inc()
	s.logAudit(ctx, actor, "order_delete", "order", strconv.FormatInt(id, 10), "")
	return nil
}

// --- sales ledger ---

// RecordSale appends a ledger entry for the calling dealer. The dealer
// record is created on first sale with the default commission, and the
// earnings are derived once from the commission in force right now;
// later commission changes never rewrite history.
func (s *Service) RecordSale(ctx context.Context, actor domain.Actor, req domain.SaleCreateRequest) (*domain.SaleRecord, error) {
	if actor.Role != domain.RoleDealer {
		return nil, ErrForbidden
	}
	if req.Amount <= 0 {
		return nil, store.ErrValidation
	}

	dealer, err := s.repo.EnsureDealer(ctx, actor.Username, actor.Username)
	if err != nil {
		return nil, err
	}

	now := s.now()
	week, year := isoweek.Of(now)

	created, err := s.repo.CreateSale(ctx, domain.SaleRecord{
		DealerID:   dealer.ID,
		Amount:     req.Amount,
		Commission: dealer.Commission,
		Earnings:   req.Amount * dealer.Commission,
		Note:       strings.TrimSpace(req.Note),
		Week:       week,
		Year:       year,
		Timestamp:  now,
	})
	if err != nil {
		return nil, err
	}

	s.stats.SalesRecorded.Inc()
	s.stats.SalesAmount.Add(created.Amount)
	if err := s.boards.Invalidate(ctx, weeklyBoardKey(week, year), allTimeBoardKey); err != nil {
		log.Printf("[service] WARN: leaderboard invalidate failed: %v", err)
	}
	s.logAudit(ctx, actor, "sale_record", "sale", strconv.FormatInt(created.ID, 10), fmt.Sprintf("amount=%.2f,earnings=%.2f", created.Amount, created.Earnings))
	return created, nil
}

// ListSales returns a dealer's recent sales. Dealers may only read
// their own ledger; admins may read anyone's.
func (s *Service) ListSales(ctx context.Context, actor domain.Actor, dealerID string, limit int) (*domain.SaleListResponse, error) {
	if actor.Role != domain.RoleAdmin && actor.Username != dealerID {
		return nil, ErrForbidden
	}
	if _, err := s.repo.GetDealer(ctx, dealerID); err != nil {
		return nil, err
	}

	sales, err := s.repo.ListSales(ctx, dealerID, limit)
	if err != nil {
		return nil, err
	}
	return &domain.SaleListResponse{Sales: sales}, nil
}

// --- leaderboards ---

const allTimeBoardKey = "leaderboard:alltime"

func weeklyBoardKey(week int, year int) string {
	return fmt.Sprintf("leaderboard:weekly:%d:%d", year, week)
}

func (s *Service) WeeklyLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	week, year := isoweek.Of(s.now())
	key := weeklyBoardKey(week, year)

	if cached, ok, err := s.boards.Get(ctx, key); err == nil && ok {
		s.stats.LeaderboardHits.WithLabelValues("weekly", "cache").Inc()
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: leaderboard cache read failed: %v", err)
	}

	rows, err := s.repo.ListWeeklyPerformance(ctx, week, year, leaderboardSize)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			DealerID:      row.DealerID,
			TotalSales:    row.TotalSales,
			TotalEarnings: row.TotalEarnings,
		})
	}
	if err := s.rankAndName(ctx, entries); err != nil {
		return nil, err
	}

	s.stats.LeaderboardHits.WithLabelValues("weekly", "store").Inc()
	if err := s.boards.Set(ctx, key, entries, s.ttl); err != nil {
		log.Printf("[service] WARN: leaderboard cache write failed: %v", err)
	}
	return entries, nil
}

func (s *Service) AllTimeLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	if cached, ok, err := s.boards.Get(ctx, allTimeBoardKey); err == nil && ok {
		s.stats.LeaderboardHits.WithLabelValues("alltime", "cache").Inc()
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: leaderboard cache read failed: %v", err)
	}

	totals, err := s.repo.ListAllTimeTotals(ctx, leaderboardSize)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(totals))
	for _, row := range totals {
		entries = append(entries, domain.LeaderboardEntry{
			DealerID:      row.DealerID,
			TotalSales:    row.TotalSales,
			TotalEarnings: row.TotalEarnings,
		})
	}
	if err := s.rankAndName(ctx, entries); err != nil {
		return nil, err
	}

	s.stats.LeaderboardHits.WithLabelValues("alltime", "store").Inc()
	if err := s.boards.Set(ctx, allTimeBoardKey, entries, s.ttl); err != nil {
		log.Printf("[service] WARN: leaderboard cache write failed: %v", err)
	}
	return entries, nil
}

// rankAndName assigns dense 1-based ranks in list order and resolves
// display names in one registry read.
func (s *Service) rankAndName(ctx context.Context, entries []domain.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.DealerID)
	}
	dealers, err := s.repo.GetDealersByIDs(ctx, ids)
	if err != nil {
		return err
	}

	for i := range entries {
		entries[i].Rank = i + 1
		if dealer, ok := dealers[entries[i].DealerID]; ok {
			entries[i].DealerName = dealer.Name
		} else {
			entries[i].DealerName = entries[i].DealerID
		}
	}
	return nil
}

// --- statistics ---

// Stats aggregates the ledger over a timeframe window anchored at the
// current instant: week = last 7 days, month = last calendar month,
// year = last calendar year, all = unbounded. Every registered dealer
// appears in the per-dealer block, zero-filled when it has no sales in
// the window.
func (s *Service) Stats(ctx context.Context, actor domain.Actor, timeframe string) (*domain.StatsResponse, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	now := s.now()
	var since time.Time
	switch timeframe {
	case "week":
		since = now.AddDate(0, 0, -7)
	case "month":
		since = now.AddDate(0, -1, 0)
	case "year":
		since = now.AddDate(-1, 0, 0)
	case "", "all":
		timeframe = "all"
	default:
		return nil, store.ErrValidation
	}

	totals, err := s.repo.SalesTotals(ctx, since)
	if err != nil {
		return nil, err
	}
	byDealer, err := s.repo.SalesTotalsByDealer(ctx, since)
	if err != nil {
		return nil, err
	}
	dealers, err := s.repo.ListDealers(ctx)
	if err != nil {
		return nil, err
	}

	resp := &domain.StatsResponse{
		Timeframe:     timeframe,
		TotalSales:    totals.TotalSales,
		TotalEarnings: totals.TotalEarnings,
		TotalProfit:   totals.TotalSales - totals.TotalEarnings,
		TotalDealers:  len(dealers),
		DealerStats:   make([]domain.DealerStats, 0, len(dealers)),
	}

	var commissionSum float64
	for _, dealer := range dealers {
		commissionSum += dealer.Commission
		dealerTotals := byDealer[dealer.ID]
		resp.DealerStats = append(resp.DealerStats, domain.DealerStats{
			DealerID:      dealer.ID,
			DealerName:    dealer.Name,
			TotalSales:    dealerTotals.TotalSales,
			TotalEarnings: dealerTotals.TotalEarnings,
			Commission:    dealer.Commission,
		})
	}
	if len(dealers) > 0 {
		resp.AverageCommission = commissionSum / float64(len(dealers))
	}

	return resp, nil
}

// --- dealer registry ---

func (s *Service) ListDealers(ctx context.Context, actor domain.Actor) ([]domain.Dealer, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.repo.ListDealers(ctx)
}

func (s *Service) SetCommission(ctx context.Context, actor domain.Actor, req domain.CommissionUpdateRequest) (*domain.Dealer, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if req.DealerID == "" || req.Commission < 0 || req.Commission > 1 {
		return nil, store.ErrValidation
	}

	updated, err := s.repo.SetDealerCommission(ctx, req.DealerID, req.Commission)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, actor, "commission_update", "dealer", req.DealerID, fmt.Sprintf("commission=%.4f", req.Commission))
	return updated, nil
}

// SyncDealers mirrors every dealer-role account from the identity
// registry into the dealer table. Existing dealers keep their stored
// commission; only name and email follow the registry. The operation
// is idempotent.
func (s *Service) SyncDealers(ctx context.Context, actor domain.Actor) (*domain.DealerSyncResponse, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	resp := &domain.DealerSyncResponse{Dealers: make([]domain.Dealer, 0, len(users))}
	for _, user := range users {
		if user.Role != domain.RoleDealer || !user.Active {
			continue
		}
		name := user.Name
		if name == "" {
			name = user.Username
		}
		saved, err := s.repo.UpsertDealer(ctx, domain.Dealer{
			ID:         user.Username,
			Name:       name,
			Email:      user.Email,
			Commission: domain.DefaultCommission,
		})
		if err != nil {
			return nil, err
		}
		resp.Synced++
		resp.Dealers = append(resp.Dealers, *saved)
	}

	s.logAudit(ctx, actor, "dealer_sync", "dealer", "", fmt.Sprintf("synced=%d", resp.Synced))
	return resp, nil
}

// --- catalog ---

func (s *Service) Catalog(_ context.Context) (*domain.Catalog, error) {
	return s.catalog.Catalog()
}

// --- audit ---

func (s *Service) AuditLogs(ctx context.Context, actor domain.Actor, limit int) ([]domain.AuditLog, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) logAudit(ctx context.Context, actor domain.Actor, action string, entityType string, entityID string, detail string) {
	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		log.Printf("[service] WARN: audit log write failed action=%s: %v", action, err)
	}
}
