package database

import "patronage/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Donation{},
		&models.SupporterTotal{},
		&models.AuthorEarning{},
	}
}
