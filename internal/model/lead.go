// Package model defines the lead records shared by the store, the ingestion
// pipeline and the query API.
package model

import (
	"fmt"
	"math"
	"strings"
)

// Lead is a normalized business listing as persisted by the record store.
// Optional fields are pointers so that "absent" survives a merge.
type Lead struct {
	ID        int64    `json:"id"`
	Name      *string  `json:"name"`
	Category  *string  `json:"category"`
	Address   *string  `json:"address"`
	City      *string  `json:"city"`
	Website   *string  `json:"website"`
	Phone     *string  `json:"phone"`
	Email     *string  `json:"email"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	SourceURL *string  `json:"source_url"`
}

// RawListing is the unvalidated data bag a collector produces. It never
// reaches the store without going through normalization.
type RawListing struct {
	Name      *string  `json:"name,omitempty"`
	Category  *string  `json:"category,omitempty"`
	Address   *string  `json:"address,omitempty"`
	City      *string  `json:"city,omitempty"`
	Website   *string  `json:"website,omitempty"`
	Phone     *string  `json:"phone,omitempty"`
	Email     *string  `json:"email,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	SourceURL *string  `json:"source_url,omitempty"`
}

// Lead converts the listing to an unsaved Lead (ID zero).
func (r RawListing) Lead() Lead {
	return Lead{
		Name:      r.Name,
		Category:  r.Category,
		Address:   r.Address,
		City:      r.City,
		Website:   r.Website,
		Phone:     r.Phone,
		Email:     r.Email,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		SourceURL: r.SourceURL,
	}
}

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field of a Lead that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid lead: " + strings.Join(parts, "; ")
}

// Validate checks required fields and the coordinate invariant. It returns
// nil or a *ValidationError.
func (l Lead) Validate() error {
	var fields []FieldError
	if Blank(l.Name) {
		fields = append(fields, FieldError{Field: "name", Message: "required"})
	}
	if Blank(l.SourceURL) {
		fields = append(fields, FieldError{Field: "source_url", Message: "required"})
	}
	fields = append(fields, CheckCoordinates(l.Latitude, l.Longitude)...)
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// CheckCoordinates enforces that latitude and longitude are set together and
// lie within geographic range.
func CheckCoordinates(lat, lon *float64) []FieldError {
	switch {
	case lat == nil && lon == nil:
		return nil
	case lat == nil:
		return []FieldError{{Field: "latitude", Message: "required when longitude is set"}}
	case lon == nil:
		return []FieldError{{Field: "longitude", Message: "required when latitude is set"}}
	}

	var fields []FieldError
	if !finite(*lat) {
		fields = append(fields, FieldError{Field: "latitude", Message: "must be a finite number"})
	} else if *lat < -90 || *lat > 90 {
		fields = append(fields, FieldError{Field: "latitude", Message: fmt.Sprintf("%g out of range [-90, 90]", *lat)})
	}
	if !finite(*lon) {
		fields = append(fields, FieldError{Field: "longitude", Message: "must be a finite number"})
	} else if *lon < -180 || *lon > 180 {
		fields = append(fields, FieldError{Field: "longitude", Message: fmt.Sprintf("%g out of range [-180, 180]", *lon)})
	}
	return fields
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Blank reports whether s is nil or only whitespace.
func Blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Float returns a pointer to f.
func Float(f float64) *float64 {
	return &f
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
