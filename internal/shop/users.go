package shop

import (
	"context"
	"strings"
)

type NewUser struct {
	FullName string
	Email    string
	Password string
	Role     Role
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, in NewUser) (User, error) {
	in.Role = RoleCustomer
	return s.insertUser(ctx, in)
}

// CreateUser is the admin path; the role may be customer or admin.
func (s *Service) CreateUser(ctx context.Context, a Actor, in NewUser) (User, error) {
	if err := requireAdmin(a); err != nil {
		return User{}, err
	}
	if in.Role == "" {
		in.Role = RoleCustomer
	}
	return s.insertUser(ctx, in)
}

// CreateAdmin is the operator path used by tooling with direct store access;
// it has no caller to check.
func (s *Service) CreateAdmin(ctx context.Context, in NewUser) (User, error) {
	in.Role = RoleAdmin
	return s.insertUser(ctx, in)
}

func (s *Service) insertUser(ctx context.Context, in NewUser) (User, error) {
	u := User{
		FullName: strings.TrimSpace(in.FullName),
		Email:    NormalizeEmail(in.Email),
		Role:     in.Role,
	}
	if u.FullName == "" || u.Email == "" || in.Password == "" {
		return User{}, InvalidArgument("full_name, email, password required")
	}
	if !strings.Contains(u.Email, "@") {
		return User{}, InvalidArgument("email is not valid")
	}
	if !u.Role.Valid() {
		return User{}, InvalidArgument("role must be customer/admin")
	}
	if _, err := s.Store.UserByEmail(ctx, u.Email); err == nil {
		return User{}, Conflict("email already exists")
	} else if !IsKind(err, KindNotFound) {
		return User{}, err
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return User{}, err
	}
	u.PasswordHash = hash
	if err := s.Store.InsertUser(ctx, &u); err != nil {
		if IsKind(err, KindConflict) {
			return User{}, Conflict("email already exists")
		}
		return User{}, err
	}
	return u, nil
}

func (s *Service) Users(ctx context.Context, a Actor) ([]User, error) {
	if err := requireAdmin(a); err != nil {
		return nil, err
	}
	return s.Store.ListUsers(ctx)
}

func (s *Service) UpdateUser(ctx context.Context, a Actor, id int64, patch UserPatch) (User, error) {
	if err := requireAdmin(a); err != nil {
		return User{}, err
	}
	u, err := s.Store.UserByID(ctx, id)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return User{}, NotFound("user not found")
		}
		return User{}, err
	}
	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" {
			return User{}, InvalidArgument("full_name must not be empty")
		}
		u.FullName = name
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return User{}, InvalidArgument("role must be customer/admin")
		}
		u.Role = *patch.Role
	}
	if patch.Password != nil && *patch.Password != "" {
		hash, err := s.Hasher.Hash(*patch.Password)
		if err != nil {
			return User{}, err
		}
		u.PasswordHash = hash
	}
	if err := s.Store.UpdateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// DeleteUser removes an account and its cart. Accounts that own orders are
// kept so order history stays attributable; an admin cannot delete itself.
func (s *Service) DeleteUser(ctx context.Context, a Actor, id int64) error {
	if err := requireAdmin(a); err != nil {
		return err
	}
	if id == a.UserID {
		return InvalidArgument("cannot delete your own account")
	}
	return s.Store.InTx(ctx, func(q Queries) error {
		if _, err := q.UserByID(ctx, id); err != nil {
			if IsKind(err, KindNotFound) {
				return NotFound("user not found")
			}
			return err
		}
		n, err := q.CountOrders(ctx, OrderFilter{UserID: id})
		if err != nil {
			return err
		}
		if n > 0 {
			return Conflict("user has %d orders", n)
		}
		if err := q.ClearCart(ctx, id); err != nil {
			return err
		}
		return q.DeleteUser(ctx, id)
	})
}
