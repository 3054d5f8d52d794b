package units

import (
	"context"
	"errors"
	"fmt"

	"github.com/nomis52/orderflow/activity"
	"github.com/nomis52/orderflow/orchestrator"
)

var (
	ErrMissingReferencePath = errors.New("reference prices path is not set")
	ErrInvalidTolerance     = errors.New("price tolerance must be between 0 and 1")
)

const validationResultsFile = "validation_results.json"

// Validator checks every order line against the reference prices.
type Validator struct {
	ReferencePath string
	// Tolerance is the accepted relative price deviation, e.g. 0.05.
	Tolerance float64
	OutputDir string
}

func (u *Validator) Name() string { return ValidatorName }

func (u *Validator) Init() error {
	if u.ReferencePath == "" {
		return ErrMissingReferencePath
	}
	if u.Tolerance < 0 || u.Tolerance > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, u.Tolerance)
	}
	return nil
}

func (u *Validator) Execute(ctx context.Context, env orchestrator.Env) orchestrator.Outcome {
	var results ValidationResults
	var path string
	issues := 0

	err := activity.CaptureError(env.Status, func() error {
		orders, err := orchestrator.Lookup[[]PurchaseOrder](env.Store, KeyCustomerOrders)
		if err != nil {
			return err
		}

		env.Status.Set("loading reference prices")
		catalog, err := LoadCatalog(u.ReferencePath)
		if err != nil {
			return err
		}
		env.Logger.Debug("reference prices loaded", "skus", len(catalog))

		results = ValidationResults{Valid: []PurchaseOrder{}, Exceptions: []OrderException{}}
		for i, order := range orders {
			if err := ctx.Err(); err != nil {
				return err
			}
			var found []Issue
			for _, line := range order.Lines {
				found = append(found, catalog.Check(line, u.Tolerance)...)
			}
			if len(found) == 0 {
				results.Valid = append(results.Valid, order)
			} else {
				results.Exceptions = append(results.Exceptions, OrderException{Order: order, Issues: found})
				issues += len(found)
				env.Logger.Info("order failed validation", "order_id", order.ID, "issues", len(found))
			}
			env.Status.Progress(float64(i+1)*100/float64(len(orders)), fmt.Sprintf("validated %d/%d orders", i+1, len(orders)))
		}

		path, err = writeJSON(u.OutputDir, validationResultsFile, results)
		return err
	})
	if err != nil {
		return orchestrator.Failure(err)
	}

	env.Logger.Info("validation finished", "valid", len(results.Valid), "exceptions", len(results.Exceptions))
	return orchestrator.Success(
		map[string]any{
			"valid":      len(results.Valid),
			"exceptions": len(results.Exceptions),
			"issues":     issues,
		},
		map[string]any{KeyValidationResults: results},
		path,
	)
}

var _ orchestrator.Unit = (*Validator)(nil)
