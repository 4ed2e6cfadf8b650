package auth

import (
	"errors"
	"unicode"
)

// CheckPassword enforces the policy for local passwords: at least 8
// characters with an upper case letter, a lower case letter and a digit.
// Directory passwords are the directory's business.
func CheckPassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must have at least 8 characters")
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return errors.New("password must contain upper case, lower case and a digit")
	}
	return nil
}
