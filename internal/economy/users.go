package economy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"microbank/internal/store"
)

var codeRE = regexp.MustCompile(`^[0-9]{4}$`)

func validCode(code string) error {
	if !codeRE.MatchString(code) {
		return fmt.Errorf("%w: secret code must be exactly 4 digits", ErrValidation)
	}
	return nil
}

// Authenticate resolves a username and secret code to a User.
func (s *Service) Authenticate(ctx context.Context, username, secret string) (User, error) {
	username = strings.TrimSpace(username)
	var out User
	err := s.store.Do(ctx, []store.Name{store.Users}, func(rw store.ReadWriter) error {
		users, err := store.Get[[]User](ctx, rw, store.Users)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(users, func(u User) bool { return u.Username == username })
		if i < 0 {
			return ErrUnauthorized
		}
		out = users[i]
		return nil
	})
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(out.SecretHash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return User{}, ErrUnauthorized
		}
		return User{}, err
	}
	return out, nil
}

func (s *Service) hashCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) setCode(ctx context.Context, username, code string) error {
	if err := validCode(code); err != nil {
		return err
	}
	hash, err := s.hashCode(code)
	if err != nil {
		return err
	}
	return s.store.Do(ctx, []store.Name{store.Users}, func(rw store.ReadWriter) error {
		users, err := store.Get[[]User](ctx, rw, store.Users)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(users, func(u User) bool { return u.Username == username })
		if i < 0 {
			return fmt.Errorf("%w: user %q", ErrNotFound, username)
		}
		users[i].SecretHash = hash
		return store.Put(ctx, rw, store.Users, users)
	})
}

// ChangeCode replaces the caller's own secret code.
func (s *Service) ChangeCode(ctx context.Context, caller User, code string) error {
	if err := s.setCode(ctx, caller.Username, code); err != nil {
		return err
	}
	s.log.Info("secret code changed", "user", caller.Username)
	return nil
}

// SetCode lets an admin reset another user's secret code.
func (s *Service) SetCode(ctx context.Context, caller User, target, code string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if err := s.setCode(ctx, target, code); err != nil {
		return err
	}
	s.log.Info("secret code reset", "user", target, "by", caller.Username)
	return nil
}

func (s *Service) Users(ctx context.Context, caller User) ([]User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	var out []User
	err := s.store.Do(ctx, []store.Name{store.Users}, func(rw store.ReadWriter) error {
		users, err := store.Get[[]User](ctx, rw, store.Users)
		for _, u := range users {
			u.SecretHash = ""
			out = append(out, u)
		}
		return err
	})
	return out, err
}
