package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"decaldesk/backend/internal/domain"
	"decaldesk/backend/internal/store"
	"decaldesk/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for schema migrations at startup.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) UpsertDealer(ctx context.Context, dealer domain.Dealer) (*domain.Dealer, error) {
	if dealer.ID == "" || dealer.Commission < 0 || dealer.Commission > 1 {
		return nil, store.ErrValidation
	}

	var saved domain.Dealer
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO dealers (id, name, email, commission, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now(),now())
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = now()
		RETURNING id, name, email, commission, created_at, updated_at
	`, dealer.ID, dealer.Name, dealer.Email, dealer.Commission).Scan(
		&saved.ID, &saved.Name, &saved.Email, &saved.Commission, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Store) EnsureDealer(ctx context.Context, id string, name string) (*domain.Dealer, error) {
	if id == "" {
		return nil, store.ErrValidation
	}

	// DO NOTHING plus a follow-up read keeps the existing row (name and
	// commission) untouched when the dealer already exists.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dealers (id, name, commission, created_at, updated_at)
		VALUES ($1,$2,$3,now(),now())
		ON CONFLICT (id) DO NOTHING
	`, id, name, domain.DefaultCommission)
	if err != nil {
		return nil, err
	}
	return s.GetDealer(ctx, id)
}

func (s *Store) GetDealer(ctx context.Context, id string) (*domain.Dealer, error) {
	var dealer domain.Dealer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(email, ''), commission, created_at, updated_at
		FROM dealers
		WHERE id = $1
	`, id).Scan(&dealer.ID, &dealer.Name, &dealer.Email, &dealer.Commission, &dealer.CreatedAt, &dealer.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &dealer, nil
}

func (s *Store) GetDealersByIDs(ctx context.Context, ids []string) (map[string]domain.Dealer, error) {
	result := make(map[string]domain.Dealer, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(email, ''), commission, created_at, updated_at
		FROM dealers
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var dealer domain.Dealer
		if err := rows.Scan(&dealer.ID, &dealer.Name, &dealer.Email, &dealer.Commission, &dealer.CreatedAt, &dealer.UpdatedAt); err != nil {
			return nil, err
		}
		result[dealer.ID] = dealer
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListDealers(ctx context.Context) ([]domain.Dealer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(email, ''), commission, created_at, updated_at
		FROM dealers
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dealers := make([]domain.Dealer, 0, 32)
	for rows.Next() {
		var dealer domain.Dealer
		if err := rows.Scan(&dealer.ID, &dealer.Name, &dealer.Email, &dealer.Commission, &dealer.CreatedAt, &dealer.UpdatedAt); err != nil {
			return nil, err
		}
		dealers = append(dealers, dealer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dealers, nil
}

func (s *Store) SetDealerCommission(ctx context.Context, id string, rate float64) (*domain.Dealer, error) {
	if rate < 0 || rate > 1 {
		return nil, store.ErrValidation
	}

	var dealer domain.Dealer
	err := s.db.QueryRowContext(ctx, `
		UPDATE dealers
		SET commission = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, COALESCE(email, ''), commission, created_at, updated_at
	`, id, rate).Scan(&dealer.ID, &dealer.Name, &dealer.Email, &dealer.Commission, &dealer.CreatedAt, &dealer.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &dealer, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.RestockOrder) (*domain.RestockOrder, error) {
	if len(order.Lines) == 0 {
		return nil, store.ErrValidation
	}
	for _, line := range order.Lines {
		if line.Name == "" || line.Quantity < 1 {
			return nil, store.ErrValidation
		}
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	if order.Timestamp.IsZero() {
		order.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO restock_orders (dealer_id, status, submitted_at)
		VALUES ($1,$2,$3)
		RETURNING id
	`, order.DealerID, order.Status, order.Timestamp).Scan(&order.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for i, line := range order.Lines {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO order_lines (order_id, name, category, quantity)
			VALUES ($1,$2,$3,$4)
			RETURNING id
		`, order.ID, line.Name, line.Category, line.Quantity).Scan(&order.Lines[i].ID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := order
	return &created, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.RestockOrder, error) {
	var order domain.RestockOrder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, dealer_id, status, submitted_at
		FROM restock_orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.DealerID, &order.Status, &order.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	order.Timestamp = order.Timestamp.UTC()

	lines, err := s.orderLines(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Lines = lines[id]
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, dealerID string) ([]domain.RestockOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dealer_id, status, submitted_at
		FROM restock_orders
		WHERE ($1 = '' OR dealer_id = $1)
		ORDER BY submitted_at DESC, id DESC
	`, dealerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.RestockOrder, 0, 64)
	ids := make([]int64, 0, 64)
	for rows.Next() {
		var order domain.RestockOrder
		if err := rows.Scan(&order.ID, &order.DealerID, &order.Status, &order.Timestamp); err != nil {
			return nil, err
		}
		order.Timestamp = order.Timestamp.UTC()
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := s.orderLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

// orderLines loads the lines for a batch of orders in one query.
func (s *Store) orderLines(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderLine, error) {
	result := make(map[int64][]domain.OrderLine, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, id, name, category, quantity
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int64
		var line domain.OrderLine
		if err := rows.Scan(&orderID, &line.ID, &line.Name, &line.Category, &line.Quantity); err != nil {
			return nil, err
		}
		result[orderID] = append(result[orderID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status string) (*domain.RestockOrder, error) {
	if !domain.ValidOrderStatus(status) {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE restock_orders
		SET status = $2
		WHERE id = $1
	`, id, status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM restock_orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) CreateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if sale.DealerID == "" || sale.Amount <= 0 {
		return nil, store.ErrValidation
	}
	if sale.Timestamp.IsZero() {
		sale.Timestamp = time.Now().UTC()
	}

	// Serializable so the insert and the bucket re-sum act as one
	// atomic read-aggregate-write step under concurrent sales.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales_records (dealer_id, amount, commission, earnings, note, week, year, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, sale.DealerID, sale.Amount, sale.Commission, sale.Earnings, sale.Note, sale.Week, sale.Year, sale.Timestamp).Scan(&sale.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO weekly_performance (dealer_id, week, year, total_sales, total_earnings, updated_at)
		SELECT dealer_id, week, year, SUM(amount), SUM(earnings), now()
		FROM sales_records
		WHERE dealer_id = $1 AND week = $2 AND year = $3
		GROUP BY dealer_id, week, year
		ON CONFLICT (dealer_id, week, year)
		DO UPDATE SET total_sales = EXCLUDED.total_sales,
			total_earnings = EXCLUDED.total_earnings,
			updated_at = now()
	`, sale.DealerID, sale.Week, sale.Year)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func (s *Store) ListSales(ctx context.Context, dealerID string, limit int) ([]domain.SaleRecord, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dealer_id, amount, commission, earnings, COALESCE(note, ''), week, year, recorded_at
		FROM sales_records
		WHERE dealer_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2
	`, dealerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleRecord, 0, limit)
	for rows.Next() {
		var rec domain.SaleRecord
		if err := rows.Scan(&rec.ID, &rec.DealerID, &rec.Amount, &rec.Commission, &rec.Earnings, &rec.Note, &rec.Week, &rec.Year, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.Timestamp = rec.Timestamp.UTC()
		sales = append(sales, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetWeeklyPerformance(ctx context.Context, dealerID string, week int, year int) (*domain.WeeklyPerformance, error) {
	var perf domain.WeeklyPerformance
	err := s.db.QueryRowContext(ctx, `
		SELECT dealer_id, week, year, total_sales, total_earnings, updated_at
		FROM weekly_performance
		WHERE dealer_id = $1 AND week = $2 AND year = $3
	`, dealerID, week, year).Scan(&perf.DealerID, &perf.Week, &perf.Year, &perf.TotalSales, &perf.TotalEarnings, &perf.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &perf, nil
}

func (s *Store) ListWeeklyPerformance(ctx context.Context, week int, year int, limit int) ([]domain.WeeklyPerformance, error) {
	if limit < 1 {
		limit = 10
	}

	// created_at tiebreak preserves first-sale insertion order for
	// equal totals.
	rows, err := s.db.QueryContext(ctx, `
		SELECT dealer_id, week, year, total_sales, total_earnings, updated_at
		FROM weekly_performance
		WHERE week = $1 AND year = $2
		ORDER BY total_sales DESC, created_at ASC
		LIMIT $3
	`, week, year, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.WeeklyPerformance, 0, limit)
	for rows.Next() {
		var perf domain.WeeklyPerformance
		if err := rows.Scan(&perf.DealerID, &perf.Week, &perf.Year, &perf.TotalSales, &perf.TotalEarnings, &perf.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, perf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListAllTimeTotals(ctx context.Context, limit int) ([]domain.DealerTotals, error) {
	if limit < 1 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT dealer_id, SUM(amount), SUM(earnings)
		FROM sales_records
		GROUP BY dealer_id
		ORDER BY SUM(amount) DESC, MIN(id) ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.DealerTotals, 0, limit)
	for rows.Next() {
		var totals domain.DealerTotals
		if err := rows.Scan(&totals.DealerID, &totals.TotalSales, &totals.TotalEarnings); err != nil {
			return nil, err
		}
		result = append(result, totals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) SalesTotals(ctx context.Context, since time.Time) (domain.SalesTotals, error) {
	var totals domain.SalesTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COALESCE(SUM(earnings), 0)
		FROM sales_records
		WHERE ($1::timestamptz IS NULL OR recorded_at >= $1)
	`, nullTime(since)).Scan(&totals.TotalSales, &totals.TotalEarnings)
	if err != nil {
		return domain.SalesTotals{}, err
	}
	return totals, nil
}

func (s *Store) SalesTotalsByDealer(ctx context.Context, since time.Time) (map[string]domain.SalesTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dealer_id, SUM(amount), SUM(earnings)
		FROM sales_records
		WHERE ($1::timestamptz IS NULL OR recorded_at >= $1)
		GROUP BY dealer_id
	`, nullTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]domain.SalesTotals)
	for rows.Next() {
		var dealerID string
		var totals domain.SalesTotals
		if err := rows.Scan(&dealerID, &totals.TotalSales, &totals.TotalEarnings); err != nil {
			return nil, err
		}
		result[dealerID] = totals
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, name, email, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.Username, user.Password, user.Name, user.Email, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, COALESCE(name, ''), COALESCE(email, ''), role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 32)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Name, &user.Email, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
