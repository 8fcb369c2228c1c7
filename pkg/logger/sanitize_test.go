package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	pkglogger "github.com/tbarroso/cerbero/pkg/logger"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{
			name:  "typical address",
			email: "jdoe@example.com",
			want:  "j***@*******.com",
		},
		{
			name:  "single char local part stays visible",
			email: "a@example.com",
			want:  "a@*******.com",
		},
		{
			name:  "subdomains are masked",
			email: "jdoe@mail.example.com",
			want:  "j***@****.*******.com",
		},
		{
			name:  "not an email",
			email: "not-an-email",
			want:  "[invalid-email]",
		},
		{
			name:  "empty string",
			email: "",
			want:  "[invalid-email]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pkglogger.SanitizedEmail(tt.email))
		})
	}
}

func TestSanitizeQueryString(t *testing.T) {
	tests := []struct {
		name     string
		rawQuery string
		want     bool
	}{
		{"empty query", "", false},
		{"harmless pagination", "limit=20&offset=0", false},
		{"password param", "password=hunter2", true},
		{"token param", "token=abc", true},
		{"verification code", "code=123456", true},
		{"session identifier", "sessionToken=xyz", true},
		{"case is ignored", "Email=jdoe%40example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pkglogger.SanitizeQueryString(tt.rawQuery))
		})
	}
}
