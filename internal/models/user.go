package models

import (
	"math"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleManager     UserRole = "MANAGER"
	RoleSchoolNurse UserRole = "SCHOOL_NURSE"
	RoleParent      UserRole = "PARENT"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Phone        string     `db:"phone" json:"phone"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Contact is the subset of a user needed to address a notification.
type Contact struct {
	UserID   string `db:"id" json:"user_id"`
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes total pages for the given page window.
func NewPagination(page, size, total int) *Pagination {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total, TotalPages: pages}
}

// PageRequest is the pageNum/pageSize pair shared by search endpoints.
type PageRequest struct {
	PageNum  int
	PageSize int
}

// Offset returns the row offset of the page. Pages too far out to address
// saturate at math.MaxInt, which still yields an empty page in SQL.
func (p PageRequest) Offset() int {
	if p.PageNum <= 1 || p.PageSize <= 0 {
		return 0
	}
	if p.PageNum-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.PageNum - 1) * p.PageSize
}
