package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodePayload(t *testing.T) {
	// matches btoa("Hello World!")
	assert.Equal(t, "SGVsbG8gV29ybGQh", EncodePayload("Hello World!"))
	assert.Equal(t, "", EncodePayload(""))
}

func TestDecodeBase64(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expected    string
		shouldError bool
	}{
		{name: "Standard", input: "SGVsbG8gV29ybGQh", expected: "Hello World!"},
		{name: "Padded", input: "aGk=", expected: "hi"},
		{name: "Unpadded", input: "aGk", expected: "hi"},
		{name: "URL safe", input: "-_8", expected: "\xfb\xff"},
		{name: "Empty", input: "  ", shouldError: true},
		{name: "Garbage", input: "!!!", shouldError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := DecodeBase64(tc.input)
			if tc.shouldError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, string(out))
		})
	}
}
