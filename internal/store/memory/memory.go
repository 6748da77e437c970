package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"decaldesk/backend/internal/domain"
	"decaldesk/backend/internal/isoweek"
	"decaldesk/backend/internal/store"
)

type Store struct {
	mu             sync.RWMutex
	dealers        map[string]domain.Dealer
	ordersByID     map[int64]domain.RestockOrder
	salesByID      map[int64]domain.SaleRecord
	saleOrder      []int64
	weeklyByBucket map[string]domain.WeeklyPerformance
	// bucketOrder preserves first-sale order per bucket so leaderboard
	// ties break by insertion order.
	bucketOrder     []string
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
	nextOrderID     int64
	nextSaleID      int64
}

func New() *Store {
	return &Store{
		dealers:         make(map[string]domain.Dealer),
		ordersByID:      make(map[int64]domain.RestockOrder),
		salesByID:       make(map[int64]domain.SaleRecord),
		weeklyByBucket:  make(map[string]domain.WeeklyPerformance),
		auditLogs:       make([]domain.AuditLog, 0, 64),
		usersByUsername: make(map[string]domain.UserAccount),
		nextOrderID:     1,
		nextSaleID:      1,
	}
}

// seedUsers builds the initial accounts for dev/demo mode. Credentials
// come from SEED_ADMIN_PASSWORD and SEED_DEALER_PASSWORD; hardcoded
// dev defaults are used (with a warning) when unset. Production runs
// use PostgreSQL, never the seeded memory store.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	dealerPwd := envOr("SEED_DEALER_PASSWORD", "dealer123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_DEALER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_DEALER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		name     string
		role     string
	}{
		{"admin", adminPwd, "Site Admin", domain.RoleAdmin},
		{"dealer", dealerPwd, "Demo Dealer", domain.RoleDealer},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Name:      u.name,
			Email:     u.username + "@example.com",
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	s.dealers["dealer"] = domain.Dealer{
		ID:         "dealer",
		Name:       "Demo Dealer",
		Email:      "dealer@example.com",
		Commission: domain.DefaultCommission,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return s
}

func (s *Store) UpsertDealer(_ context.Context, dealer domain.Dealer) (*domain.Dealer, error) {
	if strings.TrimSpace(dealer.ID) == "" {
		return nil, store.ErrValidation
	}
	if dealer.Commission < 0 || dealer.Commission > 1 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.dealers[dealer.ID]
	if ok {
		existing.Name = dealer.Name
		existing.Email = dealer.Email
		existing.UpdatedAt = now
		s.dealers[dealer.ID] = existing
		saved := existing
		return &saved, nil
	}

	dealer.CreatedAt = now
	dealer.UpdatedAt = now
	s.dealers[dealer.ID] = dealer
	saved := dealer
	return &saved, nil
}

func (s *Store) EnsureDealer(_ context.Context, id string, name string) (*domain.Dealer, error) {
	if strings.TrimSpace(id) == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.dealers[id]; ok {
		found := existing
		return &found, nil
	}

	now := time.Now().UTC()
	dealer := domain.Dealer{
		ID:         id,
		Name:       name,
		Commission: domain.DefaultCommission,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.dealers[id] = dealer
	created := dealer
	return &created, nil
}

func (s *Store) GetDealer(_ context.Context, id string) (*domain.Dealer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dealer, ok := s.dealers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := dealer
	return &found, nil
}

func (s *Store) GetDealersByIDs(_ context.Context, ids []string) (map[string]domain.Dealer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Dealer, len(ids))
	for _, id := range ids {
		if dealer, ok := s.dealers[id]; ok {
			result[id] = dealer
		}
	}
	return result, nil
}

func (s *Store) ListDealers(_ context.Context) ([]domain.Dealer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dealers := make([]domain.Dealer, 0, len(s.dealers))
	for _, dealer := range s.dealers {
		dealers = append(dealers, dealer)
	}
	slices.SortFunc(dealers, func(a, b domain.Dealer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return dealers, nil
}

func (s *Store) SetDealerCommission(_ context.Context, id string, rate float64) (*domain.Dealer, error) {
	if rate < 0 || rate > 1 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dealer, ok := s.dealers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dealer.Commission = rate
	dealer.UpdatedAt = time.Now().UTC()
	s.dealers[id] = dealer
	updated := dealer
	return &updated, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.RestockOrder) (*domain.RestockOrder, error) {
	if len(order.Lines) == 0 {
		return nil, store.ErrValidation
	}
	for _, line := range order.Lines {
		if line.Name == "" || line.Quantity < 1 {
			return nil, store.ErrValidation
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order.ID = s.nextOrderID
	s.nextOrderID++
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	if order.Timestamp.IsZero() {
		order.Timestamp = time.Now().UTC()
	}
	for i := range order.Lines {
		order.Lines[i].ID = order.ID*100 + int64(i) + 1
	}

	s.ordersByID[order.ID] = cloneOrder(order)
	created := cloneOrder(order)
	return &created, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*domain.RestockOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneOrder(order)
	return &found, nil
}

func (s *Store) ListOrders(_ context.Context, dealerID string) ([]domain.RestockOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.RestockOrder, 0, len(s.ordersByID))
	for _, order := range s.ordersByID {
		if dealerID != "" && order.DealerID != dealerID {
			continue
		}
		orders = append(orders, cloneOrder(order))
	}
	slices.SortFunc(orders, func(a, b domain.RestockOrder) int {
		if a.Timestamp.Equal(b.Timestamp) {
			// Newest id first for same-instant submissions.
			return int(b.ID - a.ID)
		}
		if a.Timestamp.After(b.Timestamp) {
			return -1
		}
		return 1
	})
	return orders, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id int64, status string) (*domain.RestockOrder, error) {
	if !domain.ValidOrderStatus(status) {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	order.Status = status
	s.ordersByID[id] = order
	updated := cloneOrder(order)
	return &updated, nil
}

func (s *Store) DeleteOrder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ordersByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.ordersByID, id)
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if sale.DealerID == "" || sale.Amount <= 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale.ID = s.nextSaleID
	s.nextSaleID++
	if sale.Timestamp.IsZero() {
		sale.Timestamp = time.Now().UTC()
	}
	s.salesByID[sale.ID] = sale
	s.saleOrder = append(s.saleOrder, sale.ID)

	s.resumWeeklyLocked(sale.DealerID, sale.Week, sale.Year)

	created := sale
	return &created, nil
}

// resumWeeklyLocked recomputes the weekly bucket as a full sum over
// the ledger rather than patching the stored totals with a delta.
func (s *Store) resumWeeklyLocked(dealerID string, week, year int) {
	var totalSales, totalEarnings float64
	for _, rec := range s.salesByID {
		if rec.DealerID == dealerID && rec.Week == week && rec.Year == year {
			totalSales += rec.Amount
			totalEarnings += rec.Earnings
		}
	}

	key := isoweek.Key(dealerID, week, year)
	if _, ok := s.weeklyByBucket[key]; !ok {
		s.bucketOrder = append(s.bucketOrder, key)
	}
	s.weeklyByBucket[key] = domain.WeeklyPerformance{
		DealerID:      dealerID,
		Week:          week,
		Year:          year,
		TotalSales:    totalSales,
		TotalEarnings: totalEarnings,
		UpdatedAt:     time.Now().UTC(),
	}
}

func (s *Store) ListSales(_ context.Context, dealerID string, limit int) ([]domain.SaleRecord, error) {
	if limit < 1 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.SaleRecord, 0, limit)
	for i := len(s.saleOrder) - 1; i >= 0 && len(sales) < limit; i-- {
		rec := s.salesByID[s.saleOrder[i]]
		if rec.DealerID == dealerID {
			sales = append(sales, rec)
		}
	}
	return sales, nil
}

func (s *Store) GetWeeklyPerformance(_ context.Context, dealerID string, week int, year int) (*domain.WeeklyPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perf, ok := s.weeklyByBucket[isoweek.Key(dealerID, week, year)]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := perf
	return &found, nil
}

func (s *Store) ListWeeklyPerformance(_ context.Context, week int, year int, limit int) ([]domain.WeeklyPerformance, error) {
	if limit < 1 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.WeeklyPerformance, 0, limit)
	for _, key := range s.bucketOrder {
		perf := s.weeklyByBucket[key]
		if perf.Week == week && perf.Year == year {
			rows = append(rows, perf)
		}
	}
	slices.SortStableFunc(rows, func(a, b domain.WeeklyPerformance) int {
		switch {
		case a.TotalSales > b.TotalSales:
			return -1
		case a.TotalSales < b.TotalSales:
			return 1
		}
		return 0
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) ListAllTimeTotals(_ context.Context, limit int) ([]domain.DealerTotals, error) {
	if limit < 1 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	byDealer := make(map[string]*domain.DealerTotals)
	order := make([]string, 0)
	for _, id := range s.saleOrder {
		rec := s.salesByID[id]
		totals, ok := byDealer[rec.DealerID]
		if !ok {
			totals = &domain.DealerTotals{DealerID: rec.DealerID}
			byDealer[rec.DealerID] = totals
			order = append(order, rec.DealerID)
		}
		totals.TotalSales += rec.Amount
		totals.TotalEarnings += rec.Earnings
	}

	rows := make([]domain.DealerTotals, 0, len(order))
	for _, dealerID := range order {
		rows = append(rows, *byDealer[dealerID])
	}
	slices.SortStableFunc(rows, func(a, b domain.DealerTotals) int {
		switch {
		case a.TotalSales > b.TotalSales:
			return -1
		case a.TotalSales < b.TotalSales:
			return 1
		}
		return 0
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) SalesTotals(_ context.Context, since time.Time) (domain.SalesTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.SalesTotals
	for _, rec := range s.salesByID {
		if !since.IsZero() && rec.Timestamp.Before(since) {
			continue
		}
		totals.TotalSales += rec.Amount
		totals.TotalEarnings += rec.Earnings
	}
	return totals, nil
}

func (s *Store) SalesTotalsByDealer(_ context.Context, since time.Time) (map[string]domain.SalesTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.SalesTotals)
	for _, rec := range s.salesByID {
		if !since.IsZero() && rec.Timestamp.Before(since) {
			continue
		}
		totals := result[rec.DealerID]
		totals.TotalSales += rec.Amount
		totals.TotalEarnings += rec.Earnings
		result[rec.DealerID] = totals
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		logs = append(logs, s.auditLogs[i])
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneOrder(order domain.RestockOrder) domain.RestockOrder {
	copied := order
	copied.Lines = slices.Clone(order.Lines)
	return copied
}
