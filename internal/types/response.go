package types

// Response is the error envelope written by api.ErrorResponse.
type Response struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// CountriesResponse lists the countries retrieval can be filtered by.
type CountriesResponse struct {
	Countries []Country `json:"countries"`
}
