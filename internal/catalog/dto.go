package catalog

// IngredientLineReq is one material line of a recipe create/update request.
type IngredientLineReq struct {
	MaterialID int64   `json:"material_id" validate:"required,gt=0"`
	Quantity   float64 `json:"quantity" validate:"required,gt=0"`
	Unit       string  `json:"unit" validate:"required,max=20"`
}

// CreateRecipeRequest creates version 1 of a product's recipe.
type CreateRecipeRequest struct {
	ProductID     int64               `json:"product_id" validate:"required,gt=0"`
	YieldQuantity float64             `json:"yield_quantity" validate:"required,gt=0"`
	YieldUnit     string              `json:"yield_unit" validate:"required,max=20"`
	Ingredients   []IngredientLineReq `json:"ingredients" validate:"required,min=1,dive"`
}

// UpdateIngredientsRequest replaces the ingredient list by inserting a new
// version; yield may change alongside.
type UpdateIngredientsRequest struct {
	YieldQuantity float64             `json:"yield_quantity" validate:"required,gt=0"`
	YieldUnit     string              `json:"yield_unit" validate:"required,max=20"`
	Ingredients   []IngredientLineReq `json:"ingredients" validate:"required,min=1,dive"`
}
