package account

import "testing"

func TestValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"simple", "alice@example.com", true},
		{"subdomain", "alice@mail.example.com", true},
		{"plus tag", "alice+tag@example.com", true},
		{"dotted local part", "first.last@example.com", true},
		{"missing at", "alice.example.com", false},
		{"missing domain", "alice@", false},
		{"missing tld", "alice@example", false},
		{"tld too long", "alice@example.technology", false},
		{"leading dot in local part", ".alice@example.com", false},
		{"double dot in local part", "ali..ce@example.com", false},
		{"empty", "", false},
		{"spaces", "alice smith@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validEmail(tt.email); got != tt.valid {
				t.Errorf("validEmail(%q) = %v, expected %v", tt.email, got, tt.valid)
			}
		})
	}
}

func TestValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"all classes", "Passw0rd!", true},
		{"minimum length", "Aa1.bcde", true},
		{"maximum length", "Aa1." + repeat('x', 46), true},
		{"too short", "Aa1.bcd", false},
		{"too long", "Aa1." + repeat('x', 47), false},
		{"no digit", "Password!", false},
		{"no lowercase", "PASSW0RD!", false},
		{"no uppercase", "passw0rd!", false},
		{"no special", "Passw0rdd", false},
		{"unlisted special only", "Passw0rd ", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validPassword(tt.password); got != tt.valid {
				t.Errorf("validPassword(%q) = %v, expected %v", tt.password, got, tt.valid)
			}
		})
	}
}

func repeat(r rune, n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}
	return string(out)
}
