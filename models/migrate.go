package models

import "gorm.io/gorm"

// AutoMigrate creates or updates the tables of every marketplace model
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Product{}, &Message{})
}
