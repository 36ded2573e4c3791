package model

import "time"

// ServiceOffering is a catalog entry. Its Policy is the source of the
// snapshot copied onto bookings at creation time.
type ServiceOffering struct {
	ID          string         `json:"id,omitempty" bson:"_id,omitempty"`
	Name        string         `json:"name" bson:"name" validate:"required,min=2,max=100"`
	DurationMin int            `json:"duration_min" bson:"duration_min" validate:"required,min=15,max=480"`
	Policy      PolicySnapshot `json:"policy" bson:"policy"`
	Active      bool           `json:"active" bson:"active"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
}
