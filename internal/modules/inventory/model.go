package inventory

import (
	"strings"
	"time"

	"github.com/georgemunganga/stockroom-backend/internal/modules/location"
	"github.com/shopspring/decimal"
)

// Document field names.
const (
	fieldName         = "name"
	fieldDescription  = "description"
	fieldPrice        = "price"
	fieldCategory     = "category"
	fieldStock        = "stock"
	fieldPhotoPath    = "photoPath"
	fieldSupplierID   = "supplierId"
	fieldSupplierName = "supplierName"
	fieldCreatedAt    = "createdAt"
	fieldAddress      = "address"
	fieldContact      = "contact"
	fieldLocation     = "location"
	fieldLatitude     = "latitude"
	fieldLongitude    = "longitude"
	fieldItemID       = "itemId"
	fieldType         = "type"
	fieldQuantity     = "quantity"
	fieldDate         = "date"
)

// Defaults substituted for missing optional fields.
const (
	DefaultDescription     = "No description"
	DefaultCategory        = "Uncategorized"
	DefaultSupplierName    = "Unknown Supplier"
	DefaultSupplierAddress = "No address"
	DefaultSupplierContact = "No contact"
)

// TransactionType tags a stock history entry.
type TransactionType string

const (
	TransactionIncrease TransactionType = "increase"
	TransactionDecrease TransactionType = "decrease"
	TransactionUnknown  TransactionType = "unknown"
)

// ParseTransactionType accepts the canonical tags and the legacy
// "Masuk"/"Keluar" labels. Anything else is TransactionUnknown.
func ParseTransactionType(s string) TransactionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "increase", "masuk":
		return TransactionIncrease
	case "decrease", "keluar":
		return TransactionDecrease
	default:
		return TransactionUnknown
	}
}

// Sign is +1 for increases, -1 for decreases and 0 otherwise.
func (t TransactionType) Sign() int {
	switch t {
	case TransactionIncrease:
		return 1
	case TransactionDecrease:
		return -1
	default:
		return 0
	}
}

// Item is a stocked product. SupplierName is a denormalized copy of the
// referenced supplier's name.
type Item struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	Stock        int             `json:"stock"`
	PhotoPath    string          `json:"photo_path"`
	SupplierID   string          `json:"supplier_id"`
	SupplierName string          `json:"supplier_name,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Supplier provides items. Deleting one does not touch the items that
// reference it.
type Supplier struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Address   string              `json:"address"`
	Contact   string              `json:"contact"`
	Location  location.Coordinate `json:"location"`
	MapsURL   string              `json:"maps_url,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// History is one entry of an item's append-only stock log. Quantity is
// always a magnitude.
type History struct {
	ID       string          `json:"id"`
	ItemID   string          `json:"item_id"`
	Type     TransactionType `json:"type"`
	Quantity int             `json:"quantity"`
	Date     time.Time       `json:"date"`
}

// Adjustment is the outcome of a stock adjustment.
type Adjustment struct {
	Item    Item    `json:"item"`
	History History `json:"history"`
}

// Summary holds the dashboard totals.
type Summary struct {
	TotalItems      int            `json:"total_items"`
	TotalSuppliers  int            `json:"total_suppliers"`
	TotalStock      int            `json:"total_stock"`
	ItemsByCategory map[string]int `json:"items_by_category"`
}
