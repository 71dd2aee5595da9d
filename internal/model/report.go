package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Report represents a stray animal sighting or incident.
type Report struct {
	ID           uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	AnimalType   AnimalType                  `json:"animal_type" gorm:"size:20;not null;index"`
	Breed        string                      `json:"breed"`
	Description  string                      `json:"description" gorm:"type:text;not null"`
	LocationName string                      `json:"location_name" gorm:"not null"`
	Latitude     float64                     `json:"latitude" gorm:"not null"`
	Longitude    float64                     `json:"longitude" gorm:"not null"`
	Urgency      Urgency                     `json:"urgency" gorm:"size:20;not null;index"`
	ImageURLs    datatypes.JSONSlice[string] `json:"image_urls"`
	ContactPhone string                      `json:"contact_phone"`
	Status       Status                      `json:"status" gorm:"size:20;not null;index"`
	MediaPending bool                        `json:"media_pending" gorm:"default:false"`
	UserID       *uuid.UUID                  `json:"user_id" gorm:"type:uuid;index"` // nil for anonymous reports
	Reporter     *Profile                    `json:"reporter,omitempty" gorm:"foreignKey:UserID"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// StatusUpdate is the audit row written on every status transition.
type StatusUpdate struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ReportID  uuid.UUID  `json:"report_id" gorm:"type:uuid;not null;index"`
	OldStatus Status     `json:"old_status" gorm:"size:20;not null"`
	NewStatus Status     `json:"new_status" gorm:"size:20;not null"`
	ActorID   *uuid.UUID `json:"actor_id" gorm:"type:uuid"`
	Comment   string     `json:"comment"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateReport carries the validated fields of a new report.
type CreateReport struct {
	AnimalType   AnimalType
	Breed        string
	Description  string
	LocationName string
	Latitude     float64
	Longitude    float64
	Urgency      Urgency
	ContactPhone string
	UserID       *uuid.UUID
}

// UpdateReport carries a partial field update; nil fields are left untouched.
type UpdateReport struct {
	AnimalType   *string  `json:"animal_type"`
	Breed        *string  `json:"breed"`
	Description  *string  `json:"description"`
	LocationName *string  `json:"location_name"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Urgency      *string  `json:"urgency"`
	ContactPhone *string  `json:"contact_phone"`
}

// UpdateStatusRequest is the PATCH /api/reports/:id/status body.
type UpdateStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	UserID  string `json:"userId"`
	Comment string `json:"comment"`
}

// ReportFilter narrows a report listing; empty fields are ignored.
type ReportFilter struct {
	Status     string
	Urgency    string
	AnimalType string
}

// DashboardStats mirrors the dashboard aggregate payload.
type DashboardStats struct {
	TotalReports int64             `json:"total_reports"`
	ByStatus     map[Status]int64  `json:"by_status"`
	ByUrgency    map[Urgency]int64 `json:"by_urgency"`
	SuccessRate  float64           `json:"success_rate"` // rescued+adopted over total, percent
}

// ValidationError marks client input that was rejected before any write.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// ParseCoordinates parses a "[lat,lng]" pair as sent by the report form.
// Both values must be finite and within geographic range.
func ParseCoordinates(raw string) (lat, lng float64, err error) {
	var pair []float64
	if jsonErr := json.Unmarshal([]byte(raw), &pair); jsonErr != nil {
		return 0, 0, &ValidationError{Field: "coordinates", Msg: "must be a [lat,lng] pair"}
	}
	if len(pair) != 2 {
		return 0, 0, &ValidationError{Field: "coordinates", Msg: "must contain exactly two numbers"}
	}
	lat, lng = pair[0], pair[1]
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return 0, 0, &ValidationError{Field: "coordinates", Msg: "must be finite numbers"}
	}
	if lat < -90 || lat > 90 {
		return 0, 0, &ValidationError{Field: "coordinates", Msg: "latitude out of range"}
	}
	if lng < -180 || lng > 180 {
		return 0, 0, &ValidationError{Field: "coordinates", Msg: "longitude out of range"}
	}
	return lat, lng, nil
}
