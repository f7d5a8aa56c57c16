package production

import (
	"context"
	"errors"
	"fmt"

	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

const maxBatchLines = 5

// BatchLine is one production request inside a batch.
type BatchLine struct {
	ProductID             int64
	OutputQuantity        float64
	BakerID               *int64
	PrimaryActualOverride *float64
	ExtraIngredients      []ExtraIngredient
}

// BatchInput describes a batch of 1 to 5 production lines.
type BatchInput struct {
	Lines          []BatchLine
	DefaultBakerID *int64
	StopOnError    bool
	AuthorID       int64
}

// LineResult is the outcome of a single batch line.
type LineResult struct {
	Success            bool       `json:"success"`
	Run                *Run       `json:"run,omitempty"`
	Message            string     `json:"message,omitempty"`
	MissingIngredients []Shortage `json:"missing_ingredients,omitempty"`
}

// ProcessBatch executes lines sequentially, each as its own independent
// transaction. There is no cross-line isolation: a later line sees stock
// already reduced by an earlier success, exactly as a concurrent caller
// would. A failed line becomes that line's result, never the batch's.
func (s *Service) ProcessBatch(ctx context.Context, input BatchInput) ([]LineResult, error) {
	if len(input.Lines) == 0 || len(input.Lines) > maxBatchLines {
		return nil, ErrBatchSize
	}

	results := make([]LineResult, len(input.Lines))
	aborted := false
	for i, line := range input.Lines {
		if aborted {
			results[i] = LineResult{Success: false, Message: "skipped: earlier line failed with stop_on_error"}
			continue
		}
		results[i] = s.processLine(ctx, input, line)
		if !results[i].Success && input.StopOnError {
			aborted = true
		}
	}
	return results, nil
}

// RetryFailed resubmits only the lines whose prior result was a failure,
// with their original parameters. Lines already successful keep their prior
// result untouched, so materials are never consumed twice for them.
func (s *Service) RetryFailed(ctx context.Context, input BatchInput, prior []LineResult) ([]LineResult, error) {
	if len(input.Lines) == 0 || len(input.Lines) > maxBatchLines {
		return nil, ErrBatchSize
	}
	if len(prior) != len(input.Lines) {
		return nil, fmt.Errorf("%w: prior results must match line count", shared.ErrValidation)
	}

	results := make([]LineResult, len(input.Lines))
	aborted := false
	for i, line := range input.Lines {
		if prior[i].Success {
			results[i] = prior[i]
			continue
		}
		if aborted {
			results[i] = LineResult{Success: false, Message: "skipped: earlier line failed with stop_on_error"}
			continue
		}
		results[i] = s.processLine(ctx, input, line)
		if !results[i].Success && input.StopOnError {
			aborted = true
		}
	}
	return results, nil
}

func (s *Service) processLine(ctx context.Context, input BatchInput, line BatchLine) LineResult {
	bakerID := line.BakerID
	if bakerID == nil {
		bakerID = input.DefaultBakerID
	}
	run, err := s.Process(ctx, ProcessInput{
		ProductID:             line.ProductID,
		OutputQuantity:        line.OutputQuantity,
		BakerID:               bakerID,
		PrimaryActualOverride: line.PrimaryActualOverride,
		ExtraIngredients:      line.ExtraIngredients,
		AuthorID:              input.AuthorID,
	})
	if err != nil {
		result := LineResult{Success: false, Message: err.Error()}
		var shortage *InsufficientIngredientsError
		if errors.As(err, &shortage) {
			result.MissingIngredients = shortage.Shortages
		}
		return result
	}
	return LineResult{Success: true, Run: &run}
}
