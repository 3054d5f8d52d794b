package units

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nomis52/orderflow/activity"
	"github.com/nomis52/orderflow/orchestrator"
)

const (
	testOrders = "testdata/purchase_orders.csv"
	testPrices = "testdata/reference_prices.csv"
)

// runUnit initializes u and executes it against a store seeded with seed.
func runUnit(t *testing.T, u orchestrator.Unit, seed map[string]any) (orchestrator.Outcome, *activity.StatusHandler) {
	t.Helper()
	require.NoError(t, u.Init())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)).With("unit", u.Name())
	statuses := activity.NewStatusHandler()
	env := orchestrator.Env{
		Store:  orchestrator.NewSharedStore(seed),
		Logger: logger,
		Status: activity.NewStatusLine(u.Name(), logger, statuses),
	}
	return u.Execute(context.Background(), env), statuses
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadTestOrders(t *testing.T) []PurchaseOrder {
	t.Helper()
	orders, err := ReadPurchaseOrdersFile(testOrders)
	require.NoError(t, err)
	return orders
}

func validateTestOrders(t *testing.T) ValidationResults {
	t.Helper()
	out, _ := runUnit(t, &Validator{ReferencePath: testPrices, Tolerance: 0.05, OutputDir: t.TempDir()},
		map[string]any{KeyCustomerOrders: loadTestOrders(t)})
	require.NoError(t, out.Err)
	return out.Publish[KeyValidationResults].(ValidationResults)
}
