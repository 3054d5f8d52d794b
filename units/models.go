package units

import "time"

// Unit names as used in the dependency graph.
const (
	ReaderName     = "reader"
	ValidatorName  = "validator"
	ResponderName  = "responder"
	CreatorName    = "creator"
	SummarizerName = "summarizer"
)

// Shared store keys.
const (
	KeyCustomerOrders    = "customer_orders"
	KeyValidationResults = "validation_results"
	KeyExceptionNotices  = "exception_notices"
	KeySalesOrders       = "sales_orders"
)

// DateLayout is the order_date format in the purchase orders CSV.
const DateLayout = "2006-01-02"

// OrderLine is one row of a purchase order.
type OrderLine struct {
	SKU       string  `json:"sku"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Total returns quantity times unit price.
func (l OrderLine) Total() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

// PurchaseOrder groups the CSV rows sharing an order_id.
type PurchaseOrder struct {
	ID         string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	OrderDate  time.Time   `json:"order_date"`
	Lines      []OrderLine `json:"lines"`
}

// Total returns the sum of all line totals.
func (o PurchaseOrder) Total() float64 {
	var sum float64
	for _, l := range o.Lines {
		sum += l.Total()
	}
	return sum
}

// IssueKind classifies a validation problem.
type IssueKind string

const (
	IssueUnknownSKU      IssueKind = "unknown_sku"
	IssueInvalidQuantity IssueKind = "invalid_quantity"
	IssuePriceMismatch   IssueKind = "price_mismatch"
)

// Issue is one validation problem on an order line.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	SKU      string    `json:"sku"`
	Message  string    `json:"message"`
	Expected float64   `json:"expected,omitempty"`
	Actual   float64   `json:"actual,omitempty"`
}

// OrderException is an order that failed validation.
type OrderException struct {
	Order  PurchaseOrder `json:"order"`
	Issues []Issue       `json:"issues"`
}

// ValidationResults splits orders into valid ones and exceptions.
type ValidationResults struct {
	Valid      []PurchaseOrder  `json:"valid"`
	Exceptions []OrderException `json:"exceptions"`
}

// DeliveryStatus is the simulated outcome of sending an email.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// ExceptionNotice records the email generated for an order exception.
type ExceptionNotice struct {
	OrderID    string         `json:"order_id"`
	CustomerID string         `json:"customer_id"`
	To         string         `json:"to"`
	Subject    string         `json:"subject"`
	File       string         `json:"file"`
	Issues     int            `json:"issues"`
	Status     DeliveryStatus `json:"status"`
}

// SalesOrderLine is a priced line of a sales order.
type SalesOrderLine struct {
	SKU         string  `json:"sku"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// SalesOrder is created from a valid purchase order.
type SalesOrder struct {
	ID              string           `json:"sales_order_id"`
	PurchaseOrderID string           `json:"purchase_order_id"`
	CustomerID      string           `json:"customer_id"`
	CustomerName    string           `json:"customer_name"`
	OrderDate       string           `json:"order_date"`
	Lines           []SalesOrderLine `json:"lines"`
	Items           int              `json:"items"`
	Total           float64          `json:"total"`
}

// Summary aggregates the whole run.
type Summary struct {
	TotalOrders       int                `json:"total_orders"`
	TotalLines        int                `json:"total_lines"`
	ValidOrders       int                `json:"valid_orders"`
	ExceptionOrders   int                `json:"exception_orders"`
	IssuesByKind      map[IssueKind]int  `json:"issues_by_kind"`
	SalesOrders       int                `json:"sales_orders"`
	Revenue           float64            `json:"revenue"`
	AverageOrderValue float64            `json:"average_order_value"`
	RevenueByCustomer map[string]float64 `json:"revenue_by_customer"`
	EmailsSent        int                `json:"emails_sent"`
	EmailsFailed      int                `json:"emails_failed"`
}
