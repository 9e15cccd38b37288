package model

// SearchRequest represents a direct room search request
type SearchRequest struct {
	Query    string   `json:"query" binding:"required"`
	Location *string  `json:"location,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
}

// SearchResponse carries the rendered tool output
type SearchResponse struct {
	Result string `json:"result"`
	Took   int64  `json:"took_ms"`
}

// ChatRequest represents one user turn
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message" binding:"required"`
}

// ChatResponse represents the assistant reply to one turn
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Took      int64  `json:"took_ms"`
}

// LocationsResponse lists the distinct catalog locations
type LocationsResponse struct {
	Locations []string `json:"locations"`
}

// RoomBatchRequest represents a batch ingestion request
type RoomBatchRequest struct {
	Rooms []RoomInput `json:"rooms" binding:"required"`
}

// RoomBatchResponse represents the response for batch ingestion
type RoomBatchResponse struct {
	Inserted int     `json:"inserted"`
	IDs      []int64 `json:"ids"`
}
