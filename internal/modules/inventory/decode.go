package inventory

import (
	"encoding/json"
	"log"
	"math"
	"time"

	"github.com/georgemunganga/stockroom-backend/internal/modules/document"
	"github.com/georgemunganga/stockroom-backend/internal/modules/location"
	"github.com/shopspring/decimal"
)

// DecodeItem maps an items document onto an Item. It reports false when
// name or category is missing, empty or not a string.
func DecodeItem(doc document.Document) (Item, bool) {
	f := doc.Fields
	name, ok := nonEmptyString(f[fieldName])
	if !ok {
		return Item{}, false
	}
	category, ok := nonEmptyString(f[fieldCategory])
	if !ok {
		return Item{}, false
	}
	price, ok := decimalValue(f[fieldPrice])
	if !ok || price.IsNegative() {
		price = decimal.Zero
	}
	stock, ok := intValue(f[fieldStock])
	if !ok {
		stock = 0
	}
	createdAt, _ := timeValue(f[fieldCreatedAt])
	return Item{
		ID:           doc.ID,
		Name:         name,
		Description:  stringOr(f[fieldDescription], DefaultDescription),
		Price:        price,
		Category:     category,
		Stock:        stock,
		PhotoPath:    stringOr(f[fieldPhotoPath], ""),
		SupplierID:   stringOr(f[fieldSupplierID], ""),
		SupplierName: stringOr(f[fieldSupplierName], ""),
		CreatedAt:    createdAt,
	}, true
}

// DecodeSupplier maps a suppliers document onto a Supplier, substituting
// defaults for every missing field. It never reports false.
func DecodeSupplier(doc document.Document) (Supplier, bool) {
	f := doc.Fields
	loc := fieldsValue(f[fieldLocation])
	lat, _ := floatValue(loc[fieldLatitude])
	lng, _ := floatValue(loc[fieldLongitude])
	createdAt, _ := timeValue(f[fieldCreatedAt])
	return Supplier{
		ID:        doc.ID,
		Name:      stringOr(f[fieldName], DefaultSupplierName),
		Address:   stringOr(f[fieldAddress], DefaultSupplierAddress),
		Contact:   stringOr(f[fieldContact], DefaultSupplierContact),
		Location:  location.Coordinate{Latitude: lat, Longitude: lng},
		CreatedAt: createdAt,
	}, true
}

// DecodeSupplierStrict is DecodeSupplier without defaults: name, address,
// contact and both coordinates must be present.
func DecodeSupplierStrict(doc document.Document) (Supplier, bool) {
	f := doc.Fields
	name, ok := f[fieldName].(string)
	if !ok {
		return Supplier{}, false
	}
	address, ok := f[fieldAddress].(string)
	if !ok {
		return Supplier{}, false
	}
	contact, ok := f[fieldContact].(string)
	if !ok {
		return Supplier{}, false
	}
	loc := fieldsValue(f[fieldLocation])
	lat, ok := floatValue(loc[fieldLatitude])
	if !ok {
		return Supplier{}, false
	}
	lng, ok := floatValue(loc[fieldLongitude])
	if !ok {
		return Supplier{}, false
	}
	createdAt, _ := timeValue(f[fieldCreatedAt])
	return Supplier{
		ID:        doc.ID,
		Name:      name,
		Address:   address,
		Contact:   contact,
		Location:  location.Coordinate{Latitude: lat, Longitude: lng},
		CreatedAt: createdAt,
	}, true
}

// DecodeHistory maps a histories document onto a History. It reports false
// when date is missing or unparseable.
func DecodeHistory(doc document.Document) (History, bool) {
	f := doc.Fields
	date, ok := timeValue(f[fieldDate])
	if !ok {
		return History{}, false
	}
	t := TransactionUnknown
	if s, ok := f[fieldType].(string); ok {
		t = ParseTransactionType(s)
	}
	qty, ok := intValue(f[fieldQuantity])
	if !ok {
		qty = 0
	}
	if qty < 0 {
		qty = -qty
	}
	return History{
		ID:       doc.ID,
		ItemID:   stringOr(f[fieldItemID], ""),
		Type:     t,
		Quantity: qty,
		Date:     date,
	}, true
}

// decodeAll decodes a batch, logging and excluding the documents decode
// rejects.
func decodeAll[T any](kind string, docs []document.Document, decode func(document.Document) (T, bool)) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, ok := decode(doc)
		if !ok {
			log.Printf("inventory: skipping invalid %s document %s", kind, doc.ID)
			continue
		}
		out = append(out, v)
	}
	return out
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func fieldsValue(v any) document.Fields {
	switch m := v.(type) {
	case document.Fields:
		return m
	case map[string]any:
		return m
	default:
		return nil
	}
}

func floatValue(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	f, ok := floatValue(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int(f), true
}

func decimalValue(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	}
	f, ok := floatValue(v)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
