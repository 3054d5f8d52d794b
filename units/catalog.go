package units

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ReferencePrice is one entry of the reference price table.
type ReferencePrice struct {
	SKU         string  `json:"sku"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Catalog maps SKU to its reference price.
type Catalog map[string]ReferencePrice

// LoadCatalog reads a reference price CSV with columns sku,description,price.
func LoadCatalog(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reference prices: %w", err)
	}
	defer f.Close()

	c, err := ParseCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog parses a reference price CSV. Duplicate SKUs are rejected.
func ParseCatalog(r io.Reader) (Catalog, error) {
	table, err := newCSVTable(r, "sku", "description", "price")
	if err != nil {
		return nil, err
	}

	c := make(Catalog)
	for {
		row, err := table.next()
		if errors.Is(err, io.EOF) {
			return c, nil
		}
		if err != nil {
			return nil, err
		}

		sku := row.get("sku")
		if sku == "" {
			return nil, fmt.Errorf("line %d: sku is required", row.line)
		}
		if _, dup := c[sku]; dup {
			return nil, fmt.Errorf("line %d: duplicate sku %s", row.line, sku)
		}
		price, err := row.float("price")
		if err != nil {
			return nil, err
		}
		if price < 0 {
			return nil, fmt.Errorf("line %d: invalid price %q", row.line, row.get("price"))
		}
		c[sku] = ReferencePrice{SKU: sku, Description: row.get("description"), Price: price}
	}
}

// Check validates one order line against the catalog.
func (c Catalog) Check(line OrderLine, tolerance float64) []Issue {
	var issues []Issue
	if line.Quantity <= 0 {
		issues = append(issues, Issue{
			Kind:    IssueInvalidQuantity,
			SKU:     line.SKU,
			Message: fmt.Sprintf("quantity %d must be positive", line.Quantity),
			Actual:  float64(line.Quantity),
		})
	}

	ref, ok := c[line.SKU]
	if !ok {
		return append(issues, Issue{
			Kind:    IssueUnknownSKU,
			SKU:     line.SKU,
			Message: fmt.Sprintf("SKU %s is not in the reference price list", line.SKU),
		})
	}

	if math.IsNaN(line.UnitPrice) || math.IsInf(line.UnitPrice, 0) {
		return append(issues, Issue{
			Kind:     IssuePriceMismatch,
			SKU:      line.SKU,
			Message:  fmt.Sprintf("unit price %v is not a number", line.UnitPrice),
			Expected: ref.Price,
		})
	}
	if deviation(line.UnitPrice, ref.Price) > tolerance {
		issues = append(issues, Issue{
			Kind:     IssuePriceMismatch,
			SKU:      line.SKU,
			Message:  fmt.Sprintf("unit price %.2f differs from reference %.2f by more than %.0f%%", line.UnitPrice, ref.Price, tolerance*100),
			Expected: ref.Price,
			Actual:   line.UnitPrice,
		})
	}
	return issues
}

// deviation is the relative difference of actual from reference.
func deviation(actual, reference float64) float64 {
	if reference == 0 {
		if actual == 0 {
			return 0
		}
		return math.Inf(1)
	}
	d := (actual - reference) / reference
	if d < 0 {
		d = -d
	}
	return d
}
