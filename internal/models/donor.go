package models

import (
	"time"

	"github.com/google/uuid"
)

// Blood types accepted on donor profiles
const (
	BloodTypeOPos  = "O+"
	BloodTypeONeg  = "O-"
	BloodTypeAPos  = "A+"
	BloodTypeANeg  = "A-"
	BloodTypeBPos  = "B+"
	BloodTypeBNeg  = "B-"
	BloodTypeABPos = "AB+"
	BloodTypeABNeg = "AB-"
)

// Donor is a searchable donor profile. Geohash is stored at full index precision.
type Donor struct {
	ID             uuid.UUID  `json:"id"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	Name           string     `json:"name"`
	BloodType      string     `json:"blood_type"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	Geohash        string     `json:"geohash"`
	IsAvailable    bool       `json:"is_available"`
	LastDonationAt *time.Time `json:"last_donation_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DonorMatch is a donor with its exact distance from the search center.
type DonorMatch struct {
	Donor      *Donor  `json:"donor"`
	DistanceKm float64 `json:"distance_km"`
}
