package models

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

func NewValidationErrorResponse(fields map[string]string) ErrorResponse {
	return ErrorResponse{Error: "Validation failed", Fields: fields}
}

// UsernameCheckResponse doubles as the 400 body for malformed usernames so
// older clients still see available=false.
type UsernameCheckResponse struct {
	Available bool   `json:"available"`
	Username  string `json:"username,omitempty"`
	Error     string `json:"error,omitempty"`
}
