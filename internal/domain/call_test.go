package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionIDFallbackChain(t *testing.T) {
	assert.Equal(t, SessionID("s-1"), NewSessionID("s-1", "c-1"))
	assert.Equal(t, SessionID("c-1"), NewSessionID("", "c-1"))

	generated := NewSessionID("", "")
	assert.True(t, strings.HasPrefix(string(generated), "bridge-"))
	assert.NotEqual(t, generated, NewSessionID("", ""))
}

func TestRoomNameFor(t *testing.T) {
	assert.Equal(t, RoomName("call-c-1"), RoomNameFor("c-1"))
}
