package auth

import (
	"context"
	"errors"
)

// ErrAccountForbidden indicates the caller may not read the account.
var ErrAccountForbidden = errors.New("auth: account access forbidden")

// AccountAuthorizer decides whether the identity in ctx may read an account.
type AccountAuthorizer interface {
	AuthorizeAccount(ctx context.Context, accountNumber string) error
}

// OwnerOrStaff lets customers read only their own account and staff or
// admins read any account.
type OwnerOrStaff struct{}

// AuthorizeAccount implements AccountAuthorizer.
func (OwnerOrStaff) AuthorizeAccount(ctx context.Context, accountNumber string) error {
	role := RoleFromContext(ctx)
	if RoleAtLeast(role, RoleStaff) {
		return nil
	}
	if role == RoleCustomer && accountNumber != "" && AccountNumberFromContext(ctx) == accountNumber {
		return nil
	}
	return ErrAccountForbidden
}
