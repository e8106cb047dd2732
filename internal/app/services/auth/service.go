// Package auth registers accounts, verifies passwords and issues the signed
// bearer tokens that carry a caller's identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/pkg/logger"
)

const (
	// MinSecretLength is the shortest accepted HMAC key.
	MinSecretLength = 32
	// DefaultTokenTTL applies when Config.TokenTTL is zero.
	DefaultTokenTTL = time.Hour
	issuer          = "storefront"
)

// Config holds token and hashing settings.
type Config struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
}

// Claims is the signed token payload.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RegisterInput is a sign-up request.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Phone    string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token string
	User  user.User
}

// Service implements registration, login and token verification.
type Service struct {
	users     storage.UserStore
	secret    []byte
	ttl       time.Duration
	cost      int
	dummyHash []byte
	log       *logger.Logger
	now       func() time.Time
}

// New constructs the auth service. A missing or short secret is an error the
// caller should treat as fatal.
func New(users storage.UserStore, cfg Config, log *logger.Logger) (*Service, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cfg.BcryptCost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("storefront-dummy-password"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &Service{
		users:     users,
		secret:    []byte(cfg.Secret),
		ttl:       cfg.TokenTTL,
		cost:      cfg.BcryptCost,
		dummyHash: dummy,
		log:       log,
		now:       time.Now,
	}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Register creates a user with the default role. No token is issued.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Password == "" || in.Email == "" {
		return user.User{}, svcerrors.InvalidInput("username, password and email are required")
	}

	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return user.User{}, svcerrors.Internal("", err)
	}
	created, err := s.users.CreateUser(ctx, user.User{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         user.RoleUser,
	})
	if errors.Is(err, storage.ErrConflict) {
		return user.User{}, svcerrors.Conflict("Username taken")
	}
	if err != nil {
		return user.User{}, svcerrors.Internal("", err)
	}
	s.log.WithContext(ctx).WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

// Login verifies credentials and issues a token. Unknown users and wrong
// passwords are indistinguishable to the caller, and both pay for one bcrypt
// comparison.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, svcerrors.InvalidInput("username and password required")
	}

	u, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"username": username, "reason": "unknown_user"})
		return LoginResult{}, svcerrors.Unauthorized("Invalid credentials")
	case err != nil:
		return LoginResult{}, svcerrors.Internal("", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"username": username, "reason": "bad_password"})
		return LoginResult{}, svcerrors.Unauthorized("Invalid credentials")
	}

	token, err := s.IssueToken(u.Identity())
	if err != nil {
		return LoginResult{}, svcerrors.Internal("", err)
	}
	return LoginResult{Token: token, User: u}, nil
}

// IssueToken signs an HS256 token for id.
func (s *Service) IssueToken(id user.Identity) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   id.UserID,
		Username: id.Username,
		Role:     string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken verifies signature and expiry and returns the embedded identity.
// Every failure maps to an InvalidToken error.
func (s *Service) ParseToken(raw string) (user.Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return user.Identity{}, svcerrors.InvalidToken(err)
	}
	role, ok := user.ParseRole(claims.Role)
	if !ok || claims.UserID == 0 {
		return user.Identity{}, svcerrors.InvalidToken(fmt.Errorf("malformed claims"))
	}
	return user.Identity{UserID: claims.UserID, Username: claims.Username, Role: role}, nil
}
