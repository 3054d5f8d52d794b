package units

import (
	"context"
	"errors"
	"fmt"

	"github.com/nomis52/orderflow/activity"
	"github.com/nomis52/orderflow/orchestrator"
)

var ErrMissingOrdersPath = errors.New("purchase orders path is not set")

// CSVReader loads purchase orders and publishes them as customer_orders.
type CSVReader struct {
	// Path of the purchase orders CSV.
	Path string
}

func (u *CSVReader) Name() string { return ReaderName }

func (u *CSVReader) Init() error {
	if u.Path == "" {
		return ErrMissingOrdersPath
	}
	return nil
}

func (u *CSVReader) Execute(ctx context.Context, env orchestrator.Env) orchestrator.Outcome {
	var orders []PurchaseOrder
	err := activity.CaptureError(env.Status, func() error {
		env.Status.Set(fmt.Sprintf("reading %s", u.Path))
		var err error
		orders, err = ReadPurchaseOrdersFile(u.Path)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return fmt.Errorf("%s contains no purchase orders", u.Path)
		}
		return ctx.Err()
	})
	if err != nil {
		return orchestrator.Failure(err)
	}

	lines := 0
	for _, o := range orders {
		lines += len(o.Lines)
	}
	env.Status.Progress(100, fmt.Sprintf("read %d orders", len(orders)))
	env.Logger.Info("purchase orders loaded", "orders", len(orders), "lines", lines)

	return orchestrator.Success(
		map[string]any{"orders": len(orders), "lines": lines},
		map[string]any{KeyCustomerOrders: orders},
	)
}

var _ orchestrator.Unit = (*CSVReader)(nil)
