package units

import (
	"context"

	"github.com/nomis52/orderflow/activity"
	"github.com/nomis52/orderflow/orchestrator"
)

const summaryFile = "summary.json"

// Summarizer aggregates the run into summary.json. Sales orders and
// exception notices are optional so the unit also works when the creator or
// responder is not part of the graph.
type Summarizer struct {
	OutputDir string
}

func (u *Summarizer) Name() string { return SummarizerName }

func (u *Summarizer) Init() error { return nil }

func (u *Summarizer) Execute(ctx context.Context, env orchestrator.Env) orchestrator.Outcome {
	var summary Summary
	var path string

	err := activity.CaptureError(env.Status, func() error {
		orders, err := orchestrator.Lookup[[]PurchaseOrder](env.Store, KeyCustomerOrders)
		if err != nil {
			return err
		}
		results, err := orchestrator.Lookup[ValidationResults](env.Store, KeyValidationResults)
		if err != nil {
			return err
		}
		var sales []SalesOrder
		if _, ok := env.Store.Get(KeySalesOrders); ok {
			if sales, err = orchestrator.Lookup[[]SalesOrder](env.Store, KeySalesOrders); err != nil {
				return err
			}
		}
		var notices []ExceptionNotice
		if _, ok := env.Store.Get(KeyExceptionNotices); ok {
			if notices, err = orchestrator.Lookup[[]ExceptionNotice](env.Store, KeyExceptionNotices); err != nil {
				return err
			}
		}

		env.Status.Set("aggregating statistics")
		summary = Summarize(orders, results, sales, notices)

		path, err = writeJSON(u.OutputDir, summaryFile, summary)
		return err
	})
	if err != nil {
		return orchestrator.Failure(err)
	}

	env.Logger.Info("summary written",
		"orders", summary.TotalOrders,
		"exceptions", summary.ExceptionOrders,
		"revenue", summary.Revenue,
	)
	return orchestrator.Success(
		map[string]any{
			"total_orders":     summary.TotalOrders,
			"valid_orders":     summary.ValidOrders,
			"exception_orders": summary.ExceptionOrders,
			"revenue":          summary.Revenue,
			"emails_sent":      summary.EmailsSent,
		},
		nil,
		path,
	)
}

// Summarize computes the run statistics.
func Summarize(orders []PurchaseOrder, results ValidationResults, sales []SalesOrder, notices []ExceptionNotice) Summary {
	s := Summary{
		TotalOrders:       len(orders),
		ValidOrders:       len(results.Valid),
		ExceptionOrders:   len(results.Exceptions),
		IssuesByKind:      make(map[IssueKind]int),
		SalesOrders:       len(sales),
		RevenueByCustomer: make(map[string]float64),
	}
	for _, o := range orders {
		s.TotalLines += len(o.Lines)
	}
	for _, exc := range results.Exceptions {
		for _, issue := range exc.Issues {
			s.IssuesByKind[issue.Kind]++
		}
	}
	for _, so := range sales {
		s.Revenue += so.Total
		s.RevenueByCustomer[so.CustomerID] = round2(s.RevenueByCustomer[so.CustomerID] + so.Total)
	}
	s.Revenue = round2(s.Revenue)
	if len(sales) > 0 {
		s.AverageOrderValue = round2(s.Revenue / float64(len(sales)))
	}
	for _, n := range notices {
		if n.Status == DeliverySent {
			s.EmailsSent++
		} else {
			s.EmailsFailed++
		}
	}
	return s
}

var _ orchestrator.Unit = (*Summarizer)(nil)
