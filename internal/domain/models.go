// Package domain defines the persistence models for orders, payments, and
// seller credits. These types are mapped with GORM and form the core data
// layer of the marketplace backend.
package domain

import (
	"time"
)

// Order represents a purchase of a service by a buyer from a seller. The
// status column follows the fixed transition graph in status.go; updated_at
// doubles as the optimistic-lock revision and is rewritten on every mutation.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - BuyerID / SellerID: user identifiers of the two parties; indexed.
//   - ServiceID: the purchased service listing.
//   - IdempotencyKey: caller-supplied deduplication key; unique, nullable.
//     At most one order ever exists per key.
//   - Amount / TotalAmount: price in minor currency units (positive).
//   - CommissionRate / CommissionFee / SellerAmount: platform fee breakdown.
//   - PaidAt / DeliveredAt / CompletedAt: set once on the matching transition,
//     never cleared.
//   - UpdatedAt: revision timestamp; the optimistic updater conditions every
//     write on its previous value.
type Order struct {
	ID             string  `json:"id"              gorm:"type:char(36);primaryKey"`
	BuyerID        string  `json:"buyer_id"        gorm:"type:varchar(64);not null;index:idx_buyer_orders"`
	SellerID       string  `json:"seller_id"       gorm:"type:varchar(64);not null;index:idx_seller_orders"`
	ServiceID      string  `json:"service_id"      gorm:"type:char(36);not null;index"`
	Title          string  `json:"title"           gorm:"type:varchar(200);not null"`
	Description    string  `json:"description"     gorm:"type:text"`
	Status         string  `json:"status"          gorm:"type:varchar(32);not null"`
	Amount         int64   `json:"amount"          gorm:"not null"`
	TotalAmount    int64   `json:"total_amount"    gorm:"not null"`
	CommissionRate float64 `json:"commission_rate" gorm:"not null;default:0"`
	CommissionFee  int64   `json:"commission_fee"  gorm:"not null;default:0"`
	SellerAmount   int64   `json:"seller_amount"   gorm:"not null;default:0"`
	DeliveryDays   int     `json:"delivery_days"   gorm:"not null;default:7"`

	IdempotencyKey *string `json:"idempotency_key,omitempty" gorm:"type:varchar(200);uniqueIndex:ux_orders_idem_key"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// Payment records a single settlement attempt against an order. An order may
// accumulate several rows over retries, but ExternalPaymentID is unique, so a
// given gateway payment is recorded at most once.
type Payment struct {
	ID                string     `json:"id"                  gorm:"type:char(36);primaryKey"`
	OrderID           string     `json:"order_id"            gorm:"type:char(36);not null;index"`
	ExternalPaymentID string     `json:"external_payment_id" gorm:"type:varchar(200);not null;uniqueIndex:ux_payments_external_id"`
	Amount            int64      `json:"amount"              gorm:"not null"`
	Method            string     `json:"method"              gorm:"type:varchar(32);not null"`
	Status            string     `json:"status"              gorm:"type:varchar(32);not null"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string { return "payments" }

// PaymentRequest is a seller-issued request for payment that may later be
// linked to an order. Verification updates it best-effort; a failed update
// never fails the payment itself.
type PaymentRequest struct {
	ID        string     `json:"id"        gorm:"type:char(36);primaryKey"`
	SellerID  string     `json:"seller_id" gorm:"type:varchar(64);not null;index"`
	OrderID   *string    `json:"order_id,omitempty" gorm:"type:char(36)"`
	Amount    int64      `json:"amount"    gorm:"not null"`
	Status    string     `json:"status"    gorm:"type:varchar(32);not null"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for PaymentRequest.
func (PaymentRequest) TableName() string { return "payment_requests" }

// Credit is a seller's prepaid advertising balance. Balance never goes
// negative: mutations happen only through the atomic ledger operations in the
// repo package, which refuse any deduction the balance cannot cover.
type Credit struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	SellerID  string    `json:"seller_id" gorm:"type:varchar(64);not null;index"`
	Balance   int64     `json:"balance"   gorm:"not null;default:0;check:balance >= 0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Credit.
func (Credit) TableName() string { return "credits" }

// CreditTransaction is the append-only ledger row written atomically with
// every balance change. The sum of deltas for a credit always reconciles to
// its current balance.
type CreditTransaction struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	CreditID     string    `json:"credit_id"     gorm:"type:char(36);not null;index"`
	Delta        int64     `json:"delta"         gorm:"not null"`
	BalanceAfter int64     `json:"balance_after" gorm:"not null"`
	Reason       string    `json:"reason"        gorm:"type:varchar(64)"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for CreditTransaction.
func (CreditTransaction) TableName() string { return "credit_transactions" }

// Seller links a marketplace seller profile to its owning user account.
type Seller struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Seller.
func (Seller) TableName() string { return "sellers" }

// Service is a purchasable listing. Price is the authoritative amount for
// direct purchases; client-supplied amounts are checked against it.
type Service struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	SellerID      string    `json:"seller_id"      gorm:"type:char(36);not null;index"`
	Title         string    `json:"title"          gorm:"type:varchar(200);not null"`
	Price         int64     `json:"price"          gorm:"not null"`
	DeliveryDays  int       `json:"delivery_days"  gorm:"not null;default:7"`
	RevisionCount int       `json:"revision_count" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for Service.
func (Service) TableName() string { return "services" }
