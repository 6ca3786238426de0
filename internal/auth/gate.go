package auth

import (
	"context"
	"errors"
	"strings"

	"studyhub/internal/apperr"
	"studyhub/internal/model"
	"studyhub/internal/repository"
)

// UserLookup is the part of the credential store the gate needs.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

// Gate turns an Authorization header into a resolved identity.
type Gate struct {
	codec *Codec
	users UserLookup
}

func NewGate(codec *Codec, users UserLookup) *Gate {
	return &Gate{codec: codec, users: users}
}

// Authenticate never returns an identity together with an error. A token for a
// user that no longer exists is as invalid as a forged one.
func (g *Gate) Authenticate(ctx context.Context, header string) (model.Identity, error) {
	token := BearerToken(header)
	if token == "" {
		return model.Identity{}, apperr.MissingToken()
	}
	userID, err := g.codec.Verify(token)
	if err != nil {
		return model.Identity{}, apperr.InvalidToken()
	}
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Identity{}, apperr.New(apperr.Unauthenticated, "unknown_user", "invalid or expired token")
		}
		return model.Identity{}, apperr.Internal(err)
	}
	return user.Identity(), nil
}

// RequireRole must run after Authenticate: a nil identity is unauthenticated,
// never a server error.
func RequireRole(identity *model.Identity, min model.Role) error {
	if identity == nil {
		return apperr.MissingToken()
	}
	if !identity.Role.AtLeast(min) {
		return apperr.New(apperr.Forbidden, "insufficient_role", "you are not allowed to perform this action")
	}
	return nil
}

func BearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, &identity)
}

func IdentityFromContext(ctx context.Context) *model.Identity {
	identity, _ := ctx.Value(identityKey{}).(*model.Identity)
	return identity
}
