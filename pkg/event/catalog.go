package event

const (
	MenuCreated = "menu:created"
	MenuUpdated = "menu:updated"
	MenuDeleted = "menu:deleted"

	CategoryCreated = "category:created"
	CategoryUpdated = "category:updated"
	CategoryDeleted = "category:deleted"
)

// CatalogEvents lists every push event that invalidates cached catalog data.
var CatalogEvents = []string{
	MenuCreated,
	MenuUpdated,
	MenuDeleted,
	CategoryCreated,
	CategoryUpdated,
	CategoryDeleted,
}

// DeletedEvent is the payload of the *:deleted events.
type DeletedEvent struct {
	ID string `json:"id"`
}
