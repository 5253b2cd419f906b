package models

// MenuItem is one entry of the canteen catalog. Prices are in the
// smallest currency unit.
type MenuItem struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	UnitPrice int64  `json:"unit_price" yaml:"unit_price"`
	Category  string `json:"category,omitempty" yaml:"category"`
	IsVeg     bool   `json:"is_veg" yaml:"is_veg"`
}

// Line is a requested item and quantity, before pricing
type Line struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}
