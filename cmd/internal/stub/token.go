package stub

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errBadToken = errors.New("bad token")

type tokenClaims struct {
	Email string `json:"email"`
	Type  string `json:"type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

func (s *Server) issueToken(userID, email, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Email: email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
}

// verifyToken parses and validates an HS256 token of the wanted type,
// returning the subject user id.
func (s *Server) verifyToken(raw, wantType string) (string, error) {
	claims := &tokenClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errBadToken
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		return "", errBadToken
	}
	if claims.Type != wantType || claims.Subject == "" {
		return "", errBadToken
	}
	return claims.Subject, nil
}
