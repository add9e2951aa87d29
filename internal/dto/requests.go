package dto

// QuoteRequest represents a price preview request
type QuoteRequest struct {
	PropertyID   string `json:"property_id" binding:"required"`
	CheckInDate  string `json:"check_in_date" binding:"required"`
	CheckOutDate string `json:"check_out_date" binding:"required"`
	CheckInTime  string `json:"check_in_time,omitempty"`
	CheckOutTime string `json:"check_out_time,omitempty"`
	Guests       int    `json:"guests" binding:"required,min=1"`
}

// CreateReservationRequest represents a booking request
type CreateReservationRequest struct {
	QuoteRequest
	SpecialRequests string `json:"special_requests,omitempty" binding:"max=4000"`
}

// UpdateStatusRequest represents a host decision
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=approved declined"`
}
