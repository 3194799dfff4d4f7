// Package school defines the customer schools that buy notebooks on credit.
package school

import (
	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/types"
)

// School is a customer. Debt is never stored on it; it is always derived
// from the school's sales.
type School struct {
	types.Entity
	ID             id.SchoolID `json:"id"`
	Name           string      `json:"name"`
	Address        string      `json:"address,omitempty"`
	Representative string      `json:"representative,omitempty"`
	Phone          string      `json:"phone,omitempty"`
}

// ListOpts filters school listings.
type ListOpts struct {
	Search string // case-insensitive substring of the name
	Limit  int
	Offset int
}
