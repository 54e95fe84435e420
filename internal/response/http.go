package response

// APIResponse is the envelope of every successful API response. Data is
// always present so empty lists encode as [] rather than disappearing.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

func OK[T any](data T, message string) APIResponse[T] {
	return APIResponse[T]{Success: true, Message: message, Data: data}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func Error(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}
