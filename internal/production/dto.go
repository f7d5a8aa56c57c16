package production

// ExtraIngredientReq is an ad hoc consumption line on a request.
type ExtraIngredientReq struct {
	MaterialID int64   `json:"material_id" validate:"required,gt=0"`
	Quantity   float64 `json:"quantity" validate:"required,gt=0"`
}

// ProcessRequest triggers one production run.
type ProcessRequest struct {
	ProductID        int64                `json:"product_id" validate:"required,gt=0"`
	OutputQuantity   float64              `json:"output_quantity" validate:"required,gt=0"`
	BakerID          *int64               `json:"baker_id,omitempty" validate:"omitempty,gt=0"`
	PrimaryActual    *float64             `json:"primary_ingredient_actual,omitempty" validate:"omitempty,gt=0"`
	ExtraIngredients []ExtraIngredientReq `json:"extra_ingredients,omitempty" validate:"omitempty,dive"`
}

// BatchRequest triggers up to five runs executed sequentially.
type BatchRequest struct {
	Lines          []ProcessRequest `json:"lines" validate:"required,min=1,max=5,dive"`
	DefaultBakerID *int64           `json:"default_baker_id,omitempty" validate:"omitempty,gt=0"`
	StopOnError    bool             `json:"stop_on_error"`
}

// RetryRequest resubmits a batch's failed lines.
type RetryRequest struct {
	BatchRequest
	PriorResults []LineResult `json:"prior_results" validate:"required,min=1,max=5"`
}
