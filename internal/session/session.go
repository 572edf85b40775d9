package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"kenivoire-client/internal/model"
)

// Session is the client's view of an authenticated user. SubjectID and
// Username are decoded locally from the access token for display only;
// authorization is always enforced server-side.
type Session struct {
	AccessToken  string
	RefreshToken string
	SubjectID    string
	Username     string
	ExpiresAt    time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type accessClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// FromTokenPair builds a Session from a freshly issued token pair,
// decoding the display claims without verifying the signature.
func FromTokenPair(pair model.TokenPair) (Session, error) {
	if pair.Access == "" {
		return Session{}, errors.New("missing access token")
	}

	claims := &accessClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(pair.Access, claims); err != nil {
		return Session{}, err
	}

	sess := Session{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		SubjectID:    claims.Subject,
		Username:     claims.Username,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}
