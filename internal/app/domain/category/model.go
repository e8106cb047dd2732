package category

// Category groups products in the catalogue. Products reference categories by
// name as free text.
type Category struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	ImageURI string `json:"image_uri" db:"image_uri"`
}

// Defaults are seeded into an empty catalogue at boot.
var Defaults = []string{"shirts", "trousers", "shoes", "accessories", "other"}
