package units

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/nomis52/orderflow/activity"
	"github.com/nomis52/orderflow/orchestrator"
)

const (
	salesOrdersJSON = "sales_orders.json"
	salesOrdersCSV  = "sales_orders.csv"
)

// SalesOrderCreator turns valid purchase orders into sales orders.
type SalesOrderCreator struct {
	OutputDir string
	// ReferencePath, when set, supplies line descriptions.
	ReferencePath string
	// Directory, when set, supplies customer names.
	Directory *Directory
}

func (u *SalesOrderCreator) Name() string { return CreatorName }

func (u *SalesOrderCreator) Init() error { return nil }

func (u *SalesOrderCreator) Execute(ctx context.Context, env orchestrator.Env) orchestrator.Outcome {
	orders := []SalesOrder{}
	var outputs []string
	var revenue float64

	err := activity.CaptureError(env.Status, func() error {
		results, err := orchestrator.Lookup[ValidationResults](env.Store, KeyValidationResults)
		if err != nil {
			return err
		}

		catalog := Catalog{}
		if u.ReferencePath != "" {
			if catalog, err = LoadCatalog(u.ReferencePath); err != nil {
				return err
			}
		}

		for i, po := range results.Valid {
			if err := ctx.Err(); err != nil {
				return err
			}
			so := u.convert(po, catalog)
			revenue += so.Total
			orders = append(orders, so)
			env.Status.Progress(float64(i+1)*100/float64(len(results.Valid)), fmt.Sprintf("created %s", so.ID))
		}

		env.Status.Set("writing sales orders")
		path, err := writeJSON(u.OutputDir, salesOrdersJSON, orders)
		if err != nil {
			return err
		}
		outputs = append(outputs, path)

		data, err := salesOrdersToCSV(orders)
		if err != nil {
			return err
		}
		path, err = writeFile(u.OutputDir, salesOrdersCSV, data)
		if err != nil {
			return err
		}
		outputs = append(outputs, path)
		return nil
	})
	if err != nil {
		return orchestrator.Failure(err)
	}

	env.Logger.Info("sales orders created", "count", len(orders), "revenue", round2(revenue))
	return orchestrator.Success(
		map[string]any{"sales_orders": len(orders), "revenue": round2(revenue)},
		map[string]any{KeySalesOrders: orders},
		outputs...,
	)
}

func (u *SalesOrderCreator) convert(po PurchaseOrder, catalog Catalog) SalesOrder {
	so := SalesOrder{
		ID:              "SO-" + po.ID,
		PurchaseOrderID: po.ID,
		CustomerID:      po.CustomerID,
		CustomerName:    po.CustomerID,
		OrderDate:       po.OrderDate.Format(DateLayout),
	}
	if u.Directory != nil {
		cust, _ := u.Directory.Lookup(po.CustomerID)
		so.CustomerName = cust.Name
	}
	for _, l := range po.Lines {
		line := SalesOrderLine{
			SKU:         l.SKU,
			Description: catalog[l.SKU].Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   round2(l.Total()),
		}
		so.Lines = append(so.Lines, line)
		so.Items += l.Quantity
		so.Total += line.LineTotal
	}
	so.Total = round2(so.Total)
	return so
}

func salesOrdersToCSV(orders []SalesOrder) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{{"sales_order_id", "purchase_order_id", "customer_id", "order_date", "sku", "description", "quantity", "unit_price", "line_total"}}
	for _, so := range orders {
		for _, l := range so.Lines {
			rows = append(rows, []string{
				so.ID,
				so.PurchaseOrderID,
				so.CustomerID,
				so.OrderDate,
				l.SKU,
				l.Description,
				strconv.Itoa(l.Quantity),
				strconv.FormatFloat(l.UnitPrice, 'f', 2, 64),
				strconv.FormatFloat(l.LineTotal, 'f', 2, 64),
			})
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encoding sales orders csv: %w", err)
	}
	return buf.Bytes(), nil
}

var _ orchestrator.Unit = (*SalesOrderCreator)(nil)
