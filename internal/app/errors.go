package app

import "fmt"

// DomainError is a service-level failure that maps directly onto the
// HTTP error envelope: Status becomes the response code, Code and
// Message fill the `code` and `error` fields, Details is attached
// verbatim when present. Codes in use: NOT_FOUND, AUTHORIZATION,
// VALIDATION, UNAUTHENTICATED, SEARCH_UNAVAILABLE, STORAGE_UNAVAILABLE,
// SERVER_ERROR.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
