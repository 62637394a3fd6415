package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  customer   liked <b>plot 4</b> ", "customer liked plot 4"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;ok", "alert(1)ok"},
		{"plain", "plain"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Text(tc.in), tc.in)
	}
	assert.Nil(t, TextPtr(nil))
}
