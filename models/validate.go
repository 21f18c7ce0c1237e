package models

import (
	"fmt"
	"time"
)

// FieldError beschreibt eine fehlgeschlagene Feld-Validierung.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// checkID: numerische IDs müssen >= 0 sein.
func checkID(field string, id int) error {
	if id < 0 {
		return &FieldError{Field: field, Reason: fmt.Sprintf("%d is less than zero", id)}
	}
	return nil
}

// checkPlace: Autoren-Positionen sind 1-indiziert.
func checkPlace(place int) error {
	if place < 1 {
		return &FieldError{Field: "place", Reason: fmt.Sprintf("%d is less than one", place)}
	}
	return nil
}

// checkDate: Datumsfelder müssen als Kalenderdatum YYYY-MM-DD parsen.
func checkDate(field, value string) error {
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return &FieldError{Field: field, Reason: "must be a calendar date in format YYYY-MM-DD"}
	}
	return nil
}

// checkNonEmpty: Pflicht-Strings dürfen nicht leer sein.
func checkNonEmpty(field, value string) error {
	if value == "" {
		return &FieldError{Field: field, Reason: "must not be empty"}
	}
	return nil
}
