package model

import "strings"

// SearchIntent represents the arguments a chat model passes to the room search tool
type SearchIntent struct {
	Query    string   `json:"query"`
	Location *string  `json:"location,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
}

// Normalize drops empty optional fields so they read as "no filter"
func (s *SearchIntent) Normalize() {
	s.Query = strings.TrimSpace(s.Query)
	if s.Location != nil && strings.TrimSpace(*s.Location) == "" {
		s.Location = nil
	}
}
