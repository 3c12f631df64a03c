package httpresp

const (
	ErrUnauthorized        = "unauthorized"
	ErrInvalidCredentials  = "invalid credentials"
	ErrMissingBearerToken  = "bearer token is required"
	ErrInvalidToken        = "invalid token"
	ErrForbidden           = "forbidden"
	ErrInsufficientRole    = "insufficient permissions"
	ErrNotFound            = "not found"
	ErrConflict            = "conflict"
	ErrInternal            = "internal server error"
	ErrAssistantFailed     = "the assistant could not answer right now, please try again"
	ErrAccountBlocked      = "your account is blocked"
	ErrInvalidResetRequest = "invalid or expired reset code"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type IDResponse struct {
	ID string `json:"id"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	Name        string `json:"name"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

func NewOKResponse() OKResponse {
	return OKResponse{OK: true}
}

func NewIDResponse(id string) IDResponse {
	return IDResponse{ID: id}
}

func NewCountResponse(count int64) CountResponse {
	return CountResponse{Count: count}
}

func NewTokenResponse(accessToken, userID, role, name string) TokenResponse {
	return TokenResponse{AccessToken: accessToken, UserID: userID, Role: role, Name: name}
}
