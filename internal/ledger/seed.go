package ledger

import "storefront-service/internal/models"

// SeedCatalog returns the initial catalog applied on first boot when
// no inventory state exists yet.
func SeedCatalog() models.Inventory {
	return models.Inventory{
		"1": {Name: "Kinetic Shell", Stock: 24, Price: 420},
		"2": {Name: "Draftsman Trousers", Stock: 100, Price: 280},
		"3": {Name: "Void Knit", Stock: 0, Price: 350},
		"4": {Name: "Observer Parka", Stock: 12, Price: 580},
	}
}
