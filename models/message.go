package models

import (
	"time"
)

// Message is one entry of a product's question and answer thread.
// A message without ParentID is a question; a message with ParentID is an
// answer to the question it references. Answers never have answers.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"` // foreign key to products table
	SenderID  uint      `gorm:"not null;index" json:"sender_id"`  // foreign key to users table
	Sender    User      `gorm:"foreignKey:SenderID" json:"sender"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}

// IsQuestion reports whether the message starts a thread
func (m Message) IsQuestion() bool {
	return m.ParentID == nil
}
