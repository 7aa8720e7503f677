package account

import (
	"regexp"
	"unicode"

	"github.com/okarpov/stash/internal/core"
)

// Stateless validation configuration, fixed at process start.
var (
	usernameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{3,19}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func validateUsername(verr *core.ValidationError, username string) {
	if username == "" {
		verr.Add("username", "Username is required")
		return
	}
	if !usernameRe.MatchString(username) {
		verr.Add("username", "Username must be 4-20 chars, latin letters/digits, first char is a letter")
	}
}

func validateFullName(verr *core.ValidationError, fullName string) {
	if fullName == "" {
		verr.Add("full_name", "Full name is required")
	}
}

func validateEmail(verr *core.ValidationError, email string) {
	if email == "" {
		verr.Add("email", "Email is required")
		return
	}
	if !emailRe.MatchString(email) {
		verr.Add("email", "Invalid email format")
	}
}

func validatePassword(verr *core.ValidationError, password string) {
	if password == "" {
		verr.Add("password", "Password is required")
		return
	}

	if len(password) < 6 {
		verr.Add("password", "Password must be at least 6 characters")
	}

	var hasUpper, hasDigit, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsDigit(ch):
			hasDigit = true
		case !unicode.IsLetter(ch) && !unicode.IsDigit(ch):
			hasSpecial = true
		}
	}

	if !hasUpper {
		verr.Add("password", "Password must contain at least one uppercase letter")
	}
	if !hasDigit {
		verr.Add("password", "Password must contain at least one digit")
	}
	if !hasSpecial {
		verr.Add("password", "Password must contain at least one special character")
	}
}
