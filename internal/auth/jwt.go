package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type JWT struct {
	secret []byte
	ttl    time.Duration
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret), ttl: 7 * 24 * time.Hour}
}

// Claims identifies the session holder.
type Claims struct {
	UserID uint64
	Email  string
}

func (j *JWT) Sign(u User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(j.ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(j.secret)
}

func (j *JWT) Verify(tokenStr string) (Claims, error) {
	claims, err := parseHS256(tokenStr, j.secret)
	if err != nil {
		return Claims{}, err
	}

	// jwt MapClaims numbers are float64
	idf, ok := claims["sub"].(float64)
	if !ok || idf <= 0 {
		return Claims{}, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: uint64(idf), Email: email}, nil
}

// FederatedIdentity is what a trusted federation broker asserts about a user.
type FederatedIdentity struct {
	Email    string
	Name     string
	PhotoURL string
}

// FederatedVerifier checks identity tokens minted by the federation broker
// with a shared HS256 secret.
type FederatedVerifier struct {
	secret []byte
}

func NewFederatedVerifier(secret string) *FederatedVerifier {
	if secret == "" {
		return nil
	}
	return &FederatedVerifier{secret: []byte(secret)}
}

func (v *FederatedVerifier) Verify(idToken string) (FederatedIdentity, error) {
	claims, err := parseHS256(idToken, v.secret)
	if err != nil {
		return FederatedIdentity{}, err
	}
	email, _ := claims["email"].(string)
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return FederatedIdentity{}, ErrInvalidToken
	}
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	return FederatedIdentity{Email: email, Name: name, PhotoURL: picture}, nil
}

func parseHS256(tokenStr string, secret []byte) (jwt.MapClaims, error) {
	t, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
