package services

import (
	"errors"
	"strings"
	"time"
)

// Service is one bookable clinic offering.
type Service struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

var (
	// ErrInvalidService is returned when required fields are missing.
	ErrInvalidService = errors.New("services: name and a positive duration are required")

	// ErrServiceNotFound is returned when a service id is unknown.
	ErrServiceNotFound = errors.New("services: service not found")
)

// Validate checks the catalog invariants before a write.
func (s *Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" || s.DurationMinutes <= 0 {
		return ErrInvalidService
	}
	if s.PriceCents < 0 {
		return ErrInvalidService
	}
	return nil
}
