package entity

import (
	"time"
)

// Form is one stored extraction result for data transfer between layers.
// Data holds the extracted JSON document as text.
type Form struct {
	ID        int64     `json:"id"`
	FormName  string    `json:"form_name"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FormUpdate carries the fields to change; nil leaves a field as is.
type FormUpdate struct {
	FormName *string
	Data     *string
}
