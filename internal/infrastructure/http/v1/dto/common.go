// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// IDResponse returns the identifier of a created resource.
type IDResponse struct {
	ID string `json:"id"`
}

// SuccessResponse is a generic success envelope.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ListQuery contains common list query parameters.
type ListQuery struct {
	Search  string `form:"search"`
	OrderBy string `form:"orderBy"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
}
