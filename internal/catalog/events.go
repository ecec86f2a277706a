package catalog

const (
	EventProductChanged = "ProductChanged"

	TopicProductChanged = "catalog.product.changed"
)

// ProductChangedPayload lists every category whose product count may be
// stale after the change: the new category, and the old one when a
// product moved.
type ProductChangedPayload struct {
	ProductID   string   `json:"product_id"`
	Change      string   `json:"change"` // created | updated | deleted
	CategoryIDs []string `json:"category_ids,omitempty"`
}
