package chatcmder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequiresSecret(t *testing.T) {
	t.Setenv("SECRET_KEY", "")

	cmd := NewChatCmd()
	cmd.SetArgs([]string{"http://localhost:8000"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret")
}

func TestChatRequiresServerURL(t *testing.T) {
	cmd := NewChatCmd()
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}
