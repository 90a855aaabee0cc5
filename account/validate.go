package account

import "regexp"

var emailPattern = regexp.MustCompile("^[\\w!#$%&'*+/=?`{|}~^-]+(?:\\.[\\w!#$%&'*+/=?`{|}~^-]+)*@(?:[a-zA-Z0-9-]+\\.)+[a-zA-Z]{2,6}$")

// passwordSpecials is the accepted set of special characters.
const passwordSpecials = ".!@#&()–[{}]:;',?/*~$^+=<>"

const passwordRequirements = "password must contain at least 8 characters of which at least one digit, one lowercase letter, one uppercase letter and one special character"

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// validPassword checks the password shape: 8-50 characters with at least one
// digit, one lowercase letter, one uppercase letter and one special
// character. Character classes are checked by scanning since RE2 has no
// lookahead.
func validPassword(password string) bool {
	runes := []rune(password)
	if len(runes) < 8 || len(runes) > 50 {
		return false
	}

	var digit, lower, upper, special bool
	for _, r := range runes {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		default:
			for _, s := range passwordSpecials {
				if r == s {
					special = true
					break
				}
			}
		}
	}
	return digit && lower && upper && special
}
