package models

// PlatformRole is the account-wide role, independent of any classroom membership.
type PlatformRole string

const (
	PlatformRoleAdmin PlatformRole = "ADMIN"
	PlatformRoleUser  PlatformRole = "USER"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
