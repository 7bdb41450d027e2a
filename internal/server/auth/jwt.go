// Package auth signs and checks the tokens mailed out to confirm ownership of
// a published key.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/gophmail/internal/common"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

const tokenIDSize = 16

// Claims binds a token to one stored key and the address it was published for.
// Every token carries its own random ID.
type Claims struct {
	jwt.RegisteredClaims
	KeyID int64  `json:"key_id"`
	Email string `json:"email"`
}

func GenerateToken(keyID int64, email string, secretKey []byte, validity time.Duration) (string, error) {
	id, err := common.MakeRandHexString(tokenIDSize)
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		KeyID: keyID,
		Email: email,
	})

	return token.SignedString(secretKey)
}

func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.KeyID == 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
