package app

import "net/http"

type sessionKey string

// SessionKeyUserId and SessionKeyEmail are written by the accounts service at
// login time.
const (
	SessionKeyUserId = sessionKey("userID")
	SessionKeyEmail  = sessionKey("email")
)

func (s sessionKey) String() string {
	return string(s)
}

func (app *Application) contextGetUserId(r *http.Request) int64 {
	userId, ok := r.Context().Value(SessionKeyUserId).(int64)
	if !ok {
		panic("missing user id from context")
	}

	return userId
}

func (app *Application) contextGetEmail(r *http.Request) string {
	email, _ := r.Context().Value(SessionKeyEmail).(string)
	return email
}
