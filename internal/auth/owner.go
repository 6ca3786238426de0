package auth

import (
	"studyhub/internal/apperr"
	"studyhub/internal/model"
)

// AuthorizeOwner permits a mutation iff the caller recorded the resource or is
// an admin.
func AuthorizeOwner(identity *model.Identity, owner string) error {
	return AuthorizeOwnerOrRole(identity, owner, model.RoleAdmin)
}

// AuthorizeOwnerOrRole also lets roles at or above min through.
func AuthorizeOwnerOrRole(identity *model.Identity, owner string, min model.Role) error {
	if identity == nil {
		return apperr.MissingToken()
	}
	if owner != "" && identity.ID == owner {
		return nil
	}
	if identity.Role.AtLeast(min) {
		return nil
	}
	return apperr.Denied()
}
