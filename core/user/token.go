package user

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/acadmeter/acadmeter/core"
)

// Token purposes
const (
	PurposeSession       = "session"
	PurposePasswordReset = "password-reset"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims represents the identity assertion transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	ProfileID string `json:"profileId"`
	Purpose   string `json:"purpose"`
}

// NewClaims returns the claims identifying usr for the given purpose.
func NewClaims(usr User, purpose string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: usr.ID},
		Email:            usr.Email,
		Role:             usr.Role,
		ProfileID:        usr.ProfileID,
		Purpose:          purpose,
	}
}

// TokenManager issues and verifies HS256 tokens signed with the server secret.
type TokenManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenManager(conf *core.Config) *TokenManager {
	return &TokenManager{
		secret: []byte(conf.SecretKey),
		issuer: conf.Auth.Issuer,
		now:    time.Now,
	}
}

// SetClock replaces the time source (tests).
func (m *TokenManager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *TokenManager) Now() time.Time {
	return m.now().UTC()
}

// Issue signs claims valid for ttl starting now.
func (m *TokenManager) Issue(claims Claims, ttl time.Duration) (string, error) {
	now := m.now()
	claims.Issuer = m.issuer
	claims.ID = uuid.New().String()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Verify parses token and checks its signature, expiry, issuer and purpose.
// It returns ErrTokenExpired once the expiry instant is reached and ErrTokenInvalid for anything else.
func (m *TokenManager) Verify(token, purpose string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	default:
		return Claims{}, ErrTokenInvalid
	}

	if claims.Purpose != purpose || claims.Subject == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

// HashToken returns the digest under which a token value is persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
