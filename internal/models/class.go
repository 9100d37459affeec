package models

import "time"

// Class groups students under one roster.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail carries the class together with its member students.
type ClassDetail struct {
	Class
	Students []Student `json:"students"`
}
