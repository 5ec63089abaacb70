package token

import (
	"net/http"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/auth"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/session"
)

// SetSessionCookie signs a token naming sess and stores it in the session
// cookie. Token and cookie expire together with the session record.
func (i *Issuer) SetSessionCookie(w http.ResponseWriter, sess *session.Session, opts session.CookieOptions) (string, error) {
	raw, err := i.Issue(auth.Principal{
		UserID:    sess.UserID,
		Email:     sess.Email,
		Role:      sess.Role,
		SessionID: sess.SessionID,
	}, sess.ExpiresAt)
	if err != nil {
		return "", err
	}

	session.SetCookie(w, raw, sess.ExpiresAt, opts)
	return raw, nil
}
