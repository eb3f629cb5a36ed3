// Package auth is the credential store and session issuer of the dashboard.
// Credentials and profiles live in the shared store as JSON documents under
// credentials/<email> and users/<uid>; sessions are HS256 JWTs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/devghori1264/prodmon/internal/storage"
)

const (
	credentialsPrefix = "credentials/"
	usersPrefix       = "users/"
	issuer            = "prodmon"
)

// ErrInvalidToken is returned by Verify for any unusable session token.
var ErrInvalidToken = errors.New("invalid session token")

// AuthError is a failed login. Reason is for logs only; callers show Error().
type AuthError struct {
	Email  string
	Reason string
}

func (e *AuthError) Error() string { return "invalid credentials" }

// Identity is an authenticated user.
type Identity struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

type credential struct {
	UserID string `json:"uid"`
	Hash   string `json:"hash"`
}

type profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Claims are the JWT session claims.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// Provider authenticates users against the shared store.
type Provider struct {
	store  storage.Store
	secret []byte
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewProvider(store storage.Store, secret string, ttl time.Duration, log *zap.Logger) (*Provider, error) {
	if secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{store: store, secret: []byte(secret), ttl: ttl, log: log, now: time.Now}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates or updates an account. An existing account keeps its uid.
func (p *Provider) Register(ctx context.Context, email, password string, role Role, name string) (Identity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Identity{}, errors.New("auth: email and password required")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return Identity{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	var cred credential
	err = storage.GetJSON(ctx, p.store, credentialsPrefix+email, &cred)
	switch {
	case err == nil && cred.UserID != "":
	case err == nil, errors.Is(err, storage.ErrNotFound):
		cred.UserID = uuid.NewString()
	default:
		var re *storage.ReadError
		if !errors.As(err, &re) {
			return Identity{}, err
		}
		cred.UserID = uuid.NewString()
	}
	cred.Hash = string(hash)

	if name == "" {
		name = email
	}
	prof := profile{ID: cred.UserID, Email: email, Name: name, Role: string(role)}
	if err := storage.PutJSON(ctx, p.store, usersPrefix+cred.UserID, prof); err != nil {
		return Identity{}, err
	}
	if err := storage.PutJSON(ctx, p.store, credentialsPrefix+email, cred); err != nil {
		return Identity{}, err
	}
	return Identity{UserID: cred.UserID, Email: email, Name: name, Role: role}, nil
}

// Login checks email and password and resolves the user's profile. All
// failures the user can cause are *AuthError.
func (p *Provider) Login(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)

	var cred credential
	if err := storage.GetJSON(ctx, p.store, credentialsPrefix+email, &cred); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Identity{}, &AuthError{Email: email, Reason: "unknown user"}
		}
		return Identity{}, fmt.Errorf("load credentials: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.Hash), []byte(password)); err != nil {
		return Identity{}, &AuthError{Email: email, Reason: "wrong password"}
	}

	var prof profile
	if err := storage.GetJSON(ctx, p.store, usersPrefix+cred.UserID, &prof); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Identity{}, &AuthError{Email: email, Reason: "profile not found"}
		}
		return Identity{}, fmt.Errorf("load profile: %w", err)
	}
	role, err := ParseRole(prof.Role)
	if err != nil {
		return Identity{}, &AuthError{Email: email, Reason: err.Error()}
	}
	return Identity{UserID: prof.ID, Email: prof.Email, Name: prof.Name, Role: role}, nil
}

// Issue signs a session token for id.
func (p *Provider) Issue(id Identity) (string, time.Time, error) {
	now := p.now()
	exp := now.Add(p.ttl)
	claims := &Claims{
		Email: id.Email,
		Name:  id.Name,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

// Verify parses a session token and returns its identity.
func (p *Provider) Verify(token string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role, err := ParseRole(string(claims.Role))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Identity{UserID: claims.Subject, Email: claims.Email, Name: claims.Name, Role: role}, nil
}
