package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{code: "es", want: "Spanish"},
		{code: "en", want: "English"},
		{code: "fr", want: "French"},
		{code: "pt", want: "Portuguese"},
		{code: "", want: ""},
		{code: "not a code", want: "not a code"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, LanguageName(tt.code))
		})
	}
}
