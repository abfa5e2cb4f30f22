package domain

import "strings"

const (
	RoleUser  = "user"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

// Pagination carries paging params and totals.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination clamps page/limit and derives the page count.
func NewPagination(page, limit, total, defLimit, maxLimit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// Offset returns the SQL offset for the page.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Actor carries authenticated user info when available.
// A zero Actor is an anonymous caller; System marks sweeper/dispatcher work.
type Actor struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
	System bool   `json:"-"`
}

func SystemActor() Actor {
	return Actor{System: true, Role: "system"}
}

func (a Actor) Authenticated() bool {
	return a.System || a.UserID > 0
}

func (a Actor) IsAdmin() bool {
	return strings.EqualFold(a.Role, RoleAdmin)
}

// ActorType is the value stored in activity_logs.actor_type.
func (a Actor) ActorType() string {
	if a.System {
		return "system"
	}
	return "user"
}
