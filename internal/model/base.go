package model

import "time"

// DateLayout is the calendar-date format used for purchase and sale dates.
const DateLayout = "2006-01-02"

type BaseModel struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
