package units

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var ordersColumns = []string{"order_id", "customer_id", "sku", "quantity", "unit_price", "order_date"}

// ReadPurchaseOrdersFile opens path and parses it with ParsePurchaseOrders.
func ReadPurchaseOrdersFile(path string) ([]PurchaseOrder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening purchase orders: %w", err)
	}
	defer f.Close()

	orders, err := ParsePurchaseOrders(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return orders, nil
}

// ValidateOrderID rejects IDs that cannot name a file in the output
// directory, such as "../x" or "a/b".
func ValidateOrderID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("invalid order_id %q", id)
	}
	return nil
}

// ParsePurchaseOrders groups rows by order_id, keeping the order in which
// each order first appears. Rows of one order must agree on customer and date.
func ParsePurchaseOrders(r io.Reader) ([]PurchaseOrder, error) {
	table, err := newCSVTable(r, ordersColumns...)
	if err != nil {
		return nil, err
	}

	var orders []PurchaseOrder
	index := make(map[string]int)
	for {
		row, err := table.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		id := row.get("order_id")
		customer := row.get("customer_id")
		sku := row.get("sku")
		if id == "" || customer == "" || sku == "" {
			return nil, fmt.Errorf("line %d: order_id, customer_id and sku are required", row.line)
		}
		if err := ValidateOrderID(id); err != nil {
			return nil, fmt.Errorf("line %d: %w", row.line, err)
		}
		qty, err := strconv.Atoi(row.get("quantity"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid quantity %q", row.line, row.get("quantity"))
		}
		price, err := row.float("unit_price")
		if err != nil {
			return nil, err
		}
		date, err := time.Parse(DateLayout, row.get("order_date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid order_date %q", row.line, row.get("order_date"))
		}

		line := OrderLine{SKU: sku, Quantity: qty, UnitPrice: price}
		i, seen := index[id]
		if !seen {
			index[id] = len(orders)
			orders = append(orders, PurchaseOrder{ID: id, CustomerID: customer, OrderDate: date, Lines: []OrderLine{line}})
			continue
		}
		if orders[i].CustomerID != customer {
			return nil, fmt.Errorf("line %d: order %s has conflicting customers %s and %s", row.line, id, orders[i].CustomerID, customer)
		}
		if !orders[i].OrderDate.Equal(date) {
			return nil, fmt.Errorf("line %d: order %s has conflicting dates %s and %s",
				row.line, id, orders[i].OrderDate.Format(DateLayout), date.Format(DateLayout))
		}
		orders[i].Lines = append(orders[i].Lines, line)
	}
	return orders, nil
}
