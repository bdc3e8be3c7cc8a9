package core

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"strings"
)

const alphaNum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// RandomAlphaNum returns a cryptographically random alphanumeric string of length n.
func RandomAlphaNum(n int) (string, error) {
	max := big.NewInt(int64(len(alphaNum)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphaNum[idx.Int64()]
	}
	return string(b), nil
}

// URLSafeToken returns a random URL-safe text string built from nbytes random bytes.
func URLSafeToken(nbytes int) (string, error) {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ContainsString reports whether s is in list.
func ContainsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
