package api

import "time"

// PermissionsResponse is the authoritative RBAC answer. Permissions are
// passed through verbatim; the client never rewrites the server's grant set.
type PermissionsResponse struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type AdminLoginInput struct {
	Code string `json:"code"`
}

type AdminLoginResponse struct {
	Token string `json:"token"`
}

type AdminStats struct {
	TotalUsers    int   `json:"total_users"`
	TotalPoints   int64 `json:"total_points"`
	ActiveOrders  int   `json:"active_orders"`
	TradesToday   int   `json:"trades_today"`
	MarketOpen    bool  `json:"market_open"`
	PendingOrders int   `json:"pending_orders"`
}

type PriceQuote struct {
	Symbol    string    `json:"symbol"`
	Price     int64     `json:"price"`
	Change    int64     `json:"change"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     int64     `json:"price"`
}

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderInput struct {
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Quantity   int       `json:"quantity"`
	LimitPrice int64     `json:"limit_price,omitempty"`
}

type Order struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type TransferInput struct {
	ToUserID string `json:"to_user_id"`
	Amount   int64  `json:"amount"`
	Note     string `json:"note,omitempty"`
}

type TransferResult struct {
	TransactionID string `json:"transaction_id"`
	Balance       int64  `json:"balance"`
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Points      int64  `json:"points"`
}

type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type AnnouncementInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type MarketConfig struct {
	Open          bool   `json:"open"`
	OpensAt       string `json:"opens_at"`
	ClosesAt      string `json:"closes_at"`
	TradingHalted bool   `json:"trading_halted"`
}

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Points      int64  `json:"points"`
	TelegramID  int64  `json:"telegram_id,omitempty"`
}

type AdjustPointsInput struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}
