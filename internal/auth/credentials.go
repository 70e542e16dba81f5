package auth

import (
	"context"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

type UserFinder interface {
	UserByEmail(ctx context.Context, email string) (shop.User, error)
}

// Credentials verifies email/password pairs and hands out access tokens.
type Credentials struct {
	Users     UserFinder
	Passwords Bcrypt
	Tokens    *Tokens
}

// Verify returns the user when password matches. Unknown email and wrong
// password fail the same way.
func (c *Credentials) Verify(ctx context.Context, email, password string) (shop.User, error) {
	email = shop.NormalizeEmail(email)
	if email == "" || password == "" {
		return shop.User{}, shop.Unauthorized("invalid credentials")
	}
	u, err := c.Users.UserByEmail(ctx, email)
	if err != nil {
		if shop.IsKind(err, shop.KindNotFound) {
			return shop.User{}, shop.Unauthorized("invalid credentials")
		}
		return shop.User{}, err
	}
	if !c.Passwords.Check(u.PasswordHash, password) {
		return shop.User{}, shop.Unauthorized("invalid credentials")
	}
	return u, nil
}

func (c *Credentials) Login(ctx context.Context, email, password string) (string, shop.User, error) {
	u, err := c.Verify(ctx, email, password)
	if err != nil {
		return "", shop.User{}, err
	}
	token, err := c.Tokens.Issue(u)
	if err != nil {
		return "", shop.User{}, err
	}
	return token, u, nil
}
