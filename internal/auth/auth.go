// Package auth issues and checks the operator tokens that guard the
// mutating API endpoints.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Roles, lowest first.
const (
	RoleViewer   = "viewer"   // read-only
	RoleOperator = "operator" // may switch sources on and off
)

var (
	// ErrInvalidCredentials is returned when login fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid or expired token")
)

const issuer = "radarfusion"

// Claims are the JWT claims of an operator session.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Account is one login. PasswordHash is a bcrypt hash.
type Account struct {
	Name         string
	PasswordHash string
	Role         string
}

// Config holds authentication configuration.
type Config struct {
	Secret        string
	TokenDuration time.Duration // default 12h
	Accounts      []Account
}

// Service logs operators in and validates their tokens.
type Service struct {
	secret   []byte
	duration time.Duration
	accounts map[string]Account
	now      func() time.Time
}

// NewService creates a service. An empty secret is an error since every
// token would be forgeable.
func NewService(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	if cfg.TokenDuration <= 0 {
		cfg.TokenDuration = 12 * time.Hour
	}

	accounts := make(map[string]Account, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		if a.Role == "" {
			a.Role = RoleOperator
		}
		if _, ok := roleLevel[a.Role]; !ok {
			return nil, fmt.Errorf("auth: account %s has unknown role %q", a.Name, a.Role)
		}
		accounts[a.Name] = a
	}

	return &Service{
		secret:   []byte(cfg.Secret),
		duration: cfg.TokenDuration,
		accounts: accounts,
		now:      time.Now,
	}, nil
}

// HashPassword hashes a plaintext password for the configuration file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login checks the password of account name and returns a signed token.
func (s *Service) Login(name, password string) (string, error) {
	acct, ok := s.accounts[name]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.GenerateToken(acct.Name, acct.Role)
}

// GenerateToken signs a token for subject with role.
func (s *Service) GenerateToken(subject, role string) (string, error) {
	now := s.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken parses a token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

var roleLevel = map[string]int{
	RoleViewer:   0,
	RoleOperator: 1,
}

// HasRole reports whether userRole is at least requiredRole.
func HasRole(userRole, requiredRole string) bool {
	user, ok1 := roleLevel[userRole]
	required, ok2 := roleLevel[requiredRole]
	if !ok1 || !ok2 {
		return false
	}
	return user >= required
}
