package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	NowFunc = time.Now // mockable

	tokenSalt  = []byte("reportal.core.user.password_reset")
	tokenEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	b32        = base32.StdEncoding.WithPadding(base32.NoPadding)

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID encodes the user ID for use in password reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// tokenGenerator makes and checks password reset tokens of the form "<b32 hours>-<signature>".
// The signature covers the account state, so a token dies with a password change,
// a new login, a deactivation or a role change.
type tokenGenerator struct {
	secret  []byte
	timeout time.Duration
}

func hoursSinceEpoch(t time.Time) int {
	return int(t.UTC().Sub(tokenEpoch) / time.Hour)
}

func (tg tokenGenerator) makeToken(usr User) (string, error) {
	return tg.tokenAt(usr, hoursSinceEpoch(NowFunc()))
}

func (tg tokenGenerator) tokenAt(usr User, hours int) (string, error) {
	key := sha256.Sum256(append(append([]byte{}, tokenSalt...), tg.secret...))
	mac := hmac.New(sha256.New, key[:])
	if _, err := mac.Write(accountState(usr, hours)); err != nil {
		return "", err
	}
	stamp := b32.EncodeToString([]byte(strconv.Itoa(hours)))
	return stamp + "-" + base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (tg tokenGenerator) verifyToken(usr User, token string) error {
	stamp, _, ok := strings.Cut(token, "-")
	if !ok {
		return errInvalidToken
	}
	raw, err := b32.DecodeString(stamp)
	if err != nil {
		return errInvalidToken
	}
	hours, err := strconv.Atoi(string(raw))
	if err != nil {
		return errInvalidToken
	}

	expected, err := tg.tokenAt(usr, hours)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) != 1 {
		return errInvalidToken
	}
	if time.Duration(hoursSinceEpoch(NowFunc())-hours)*time.Hour > tg.timeout {
		return errTokenExpired
	}
	return nil
}

func accountState(usr User, hours int) []byte {
	var b strings.Builder
	b.WriteString(usr.ID)
	b.Write(usr.PasswordHash)
	b.WriteString(usr.Role)
	b.WriteString(strconv.FormatBool(usr.IsActive))
	if usr.LastLogin.Valid {
		b.WriteString(usr.LastLogin.Time.UTC().Format(time.RFC3339))
	}
	b.WriteString(strconv.Itoa(hours))
	return []byte(b.String())
}
