package domain

import (
	"encoding/json"
	"time"
)

// PaymentStatus tracks whether money has been received for an order.
type PaymentStatus string

const (
	// PaymentStatusPending indicates the payment is awaiting provider confirmation or manual review.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusVerified indicates the payment has been confirmed by a provider or an administrator.
	PaymentStatusVerified PaymentStatus = "verified"
	// PaymentStatusFailed indicates the provider reported a terminal failure.
	PaymentStatusFailed PaymentStatus = "failed"
)

// OrderStatus tracks fulfilment progress, independently from payment state.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// DeliveryStatus tracks delivery of the purchased digital goods.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

// PaymentMethod enumerates the closed set of accepted payment channels.
type PaymentMethod string

const (
	// PaymentMethodPayPal is the card/PayPal gateway confirmed via browser redirect capture.
	PaymentMethodPayPal PaymentMethod = "paypal"
	// PaymentMethodCryptomus is the crypto processor confirmed via signed webhook.
	PaymentMethodCryptomus PaymentMethod = "cryptomus"
	// PaymentMethodWhop is the creator-commerce checkout confirmed via signed webhook.
	PaymentMethodWhop PaymentMethod = "whop"
	// PaymentMethodYape is a manual bank-transfer method confirmed by proof review.
	PaymentMethodYape PaymentMethod = "yape"
	// PaymentMethodBinance is a manual crypto-transfer method confirmed by proof review.
	PaymentMethodBinance PaymentMethod = "binance"
)

// Valid reports whether the method belongs to the accepted set.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPayPal, PaymentMethodCryptomus, PaymentMethodWhop, PaymentMethodYape, PaymentMethodBinance:
		return true
	default:
		return false
	}
}

// Manual reports whether the method relies on buyer-submitted proof instead of a provider callback.
func (m PaymentMethod) Manual() bool {
	return m == PaymentMethodYape || m == PaymentMethodBinance
}

// Supported currency codes. Prices are stored per currency, never converted at read time.
const (
	CurrencyPEN = "PEN"
	CurrencyUSD = "USD"
)

// ValidCurrency reports whether the code is one of the two supported currencies.
func ValidCurrency(code string) bool {
	return code == CurrencyPEN || code == CurrencyUSD
}

// OrderItem is a line item snapshot captured at checkout time. Unit prices are
// minor units (cents) in the order's currency.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// Order is the central persisted entity: a purchase intent plus its payment
// and fulfilment state. Customer fields are denormalised so historical orders
// stay immutable even when the account they reference changes.
type Order struct {
	ID          string
	OrderNumber string

	CustomerEmail string
	CustomerName  string
	CustomerPhone string

	// UserID weakly references an authenticated account; empty for guest orders.
	UserID string

	Items []OrderItem

	// Monetary amounts are minor units (cents). Total == Subtotal - Discount
	// holds at creation and is never recomputed afterwards.
	Subtotal int64
	Discount int64
	Total    int64
	Currency string

	Method           PaymentMethod
	PaymentProof     string
	PaymentReference string
	PaymentStatus    PaymentStatus

	Status         OrderStatus
	DeliveryStatus DeliveryStatus
	// Delivery carries the structured delivery payload (credentials, expiry
	// dates per item) attached by an administrator; stored verbatim.
	Delivery json.RawMessage

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Product is a catalog entry. Prices are kept independently per currency.
type Product struct {
	ID          string
	Slug        string
	Title       string
	Description string
	// PriceUSD and PricePEN are minor units in their respective currencies.
	PriceUSD  int64
	PricePEN  int64
	Image     string
	Category  string
	SortOrder int
	InStock   bool
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
