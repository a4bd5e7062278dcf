package user

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

const audience = "Academia"

var (
	errInvalidToken = errors.New("invalid token")
	errSigningToken = errors.New("signing token")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Name      string   `json:"name,omitempty"`
	Email     string   `json:"email,omitempty"`
	IsStudent bool     `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsTeacher bool     `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsAdmin   bool     `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
	Roles     []string `json:"roles,omitempty"`
}

// User rebuilds the (partial) User the claims were issued for.
func (c Claims) User() User {
	return User{ID: c.Subject, Name: c.Name, Email: c.Email, Roles: c.Roles, IsActive: true}
}

// TokenIssuer signs and verifies HS256 user tokens.
type TokenIssuer struct {
	appName    string
	secretKey  []byte
	expiration time.Duration
}

func NewTokenIssuer(appName, secretKey string, expiration time.Duration) *TokenIssuer {
	return &TokenIssuer{appName: appName, secretKey: []byte(secretKey), expiration: expiration}
}

func (ti *TokenIssuer) SigningKey() []byte { return ti.secretKey }

func (ti *TokenIssuer) SigningMethod() string { return jwt.SigningMethodHS256.Alg() }

// Claims returns fresh claims for usr.
func (ti *TokenIssuer) Claims(usr User) *Claims {
	now := nowFunc()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ti.appName,
			Subject:   usr.ID,
			Audience:  audience,
			ExpiresAt: now.Add(ti.expiration).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:      usr.Name,
		Email:     usr.Email,
		IsStudent: usr.IsStudent(),
		IsTeacher: usr.IsTeacher(),
		IsAdmin:   usr.IsAdmin(),
		Roles:     usr.Roles,
	}
}

// Issue generates a signed JWT token string representing the user.
func (ti *TokenIssuer) Issue(usr User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ti.Claims(usr))
	ss, err := token.SignedString(ti.secretKey)
	if err != nil {
		return "", errSigningToken
	}
	return ss, nil
}

// Parse verifies a token string and returns its claims.
func (ti *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errInvalidToken
		}
		return ti.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}
