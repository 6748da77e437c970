package domain

import "time"

// DefaultCommission is applied when a dealer record is created lazily
// (first sale) or through a registry sync.
const DefaultCommission = 0.20

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPrinting  = "PRINTING"
	OrderStatusPrinted   = "PRINTED"
	OrderStatusDelivered = "DELIVERED"
)

// ValidOrderStatus reports whether s is one of the four order states.
// Transitions are deliberately permissive: an admin may set any state
// from any other, so membership is the only status check anywhere.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPrinting, OrderStatusPrinted, OrderStatusDelivered:
		return true
	}
	return false
}

const (
	RoleAdmin  = "admin"
	RoleDealer = "dealer"
)

type Dealer struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Commission float64   `json:"commission"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type OrderLine struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

type RestockOrder struct {
	ID        int64       `json:"id"`
	DealerID  string      `json:"dealer_id"`
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Lines     []OrderLine `json:"lines"`

	// DisplayName is resolved from the dealer registry on read.
	DisplayName string `json:"display_name,omitempty"`
}

type OrderLineRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

type OrderCreateRequest struct {
	Lines []OrderLineRequest `json:"lines"`
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
}

// OrderListStats is derived from one loaded order snapshot so the
// counts never disagree with the listed rows.
type OrderListStats struct {
	Orders        int            `json:"orders"`
	Lines         int            `json:"lines"`
	TotalQuantity int            `json:"total_quantity"`
	ByStatus      map[string]int `json:"by_status"`
}

type OrderListResponse struct {
	Orders []RestockOrder `json:"orders"`
	Stats  OrderListStats `json:"stats"`
}

type SaleRecord struct {
	ID         int64     `json:"id"`
	DealerID   string    `json:"dealer_id"`
	Amount     float64   `json:"amount"`
	Commission float64   `json:"commission"`
	Earnings   float64   `json:"earnings"`
	Note       string    `json:"note,omitempty"`
	Week       int       `json:"week"`
	Year       int       `json:"year"`
	Timestamp  time.Time `json:"timestamp"`
}

type SaleCreateRequest struct {
	Amount float64 `json:"amount"`
	Note   string  `json:"note,omitempty"`
}

type SaleListResponse struct {
	Sales []SaleRecord `json:"sales"`
}

type WeeklyPerformance struct {
	DealerID      string    `json:"dealer_id"`
	Week          int       `json:"week"`
	Year          int       `json:"year"`
	TotalSales    float64   `json:"total_sales"`
	TotalEarnings float64   `json:"total_earnings"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type LeaderboardEntry struct {
	DealerID      string  `json:"dealer_id"`
	DealerName    string  `json:"dealer_name"`
	TotalSales    float64 `json:"total_sales"`
	TotalEarnings float64 `json:"total_earnings"`
	Rank          int     `json:"rank"`
}

// DealerTotals is a group-by-dealer sum over the sales ledger.
type DealerTotals struct {
	DealerID      string  `json:"dealer_id"`
	TotalSales    float64 `json:"total_sales"`
	TotalEarnings float64 `json:"total_earnings"`
}

type SalesTotals struct {
	TotalSales    float64 `json:"total_sales"`
	TotalEarnings float64 `json:"total_earnings"`
}

type DealerStats struct {
	DealerID      string  `json:"dealer_id"`
	DealerName    string  `json:"dealer_name"`
	TotalSales    float64 `json:"total_sales"`
	TotalEarnings float64 `json:"total_earnings"`
	Commission    float64 `json:"commission"`
}

type StatsResponse struct {
	Timeframe         string        `json:"timeframe"`
	TotalSales        float64       `json:"total_sales"`
	TotalEarnings     float64       `json:"total_earnings"`
	TotalProfit       float64       `json:"total_profit"`
	TotalDealers      int           `json:"total_dealers"`
	AverageCommission float64       `json:"average_commission"`
	DealerStats       []DealerStats `json:"dealer_stats"`
}

type CommissionUpdateRequest struct {
	DealerID   string  `json:"dealer_id"`
	Commission float64 `json:"commission"`
}

type DealerSyncResponse struct {
	Synced  int      `json:"synced"`
	Dealers []Dealer `json:"dealers"`
}

type Category struct {
	Name          string     `json:"name"`
	Path          string     `json:"path"`
	Subcategories []Category `json:"subcategories,omitempty"`
}

type CatalogItem struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	ImagePath string `json:"image_path"`
}

type Catalog struct {
	Categories []Category    `json:"categories"`
	Items      []CatalogItem `json:"items"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the resolved caller identity threaded explicitly into every
// service operation. For dealers, Username doubles as the dealer
// identity reference.
type Actor struct {
	Username string
	Role     string
}

type DealerAccountCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
}

type DealerAccount struct {
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials
// and the identity registry behind dealer sync.
type UserAccount struct {
	Username  string
	Password  string
	Name      string
	Email     string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
