package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"validation", Validation("commit", "title is required"), "commit: title is required"},
		{"busy", Busy("import"), "import: another diagram operation is in progress"},
		{"with cause", Import("import", errors.New("unexpected EOF")), "import: diagram import failed: unexpected EOF"},
		{"already started", AlreadyStarted("start session"), "start session: session already started"},
		{"no op", New(KindNotFound, "", "story not found", nil), "story not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf_WrappedChain(t *testing.T) {
	base := Persistence("write", errors.New("disk full"))
	wrapped := fmt.Errorf("saving diagram: %w", base)

	assert.Equal(t, KindPersistence, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindPersistence))
	assert.False(t, Is(wrapped, KindBusy))
}

func TestKindOf_Untagged(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindValidation))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Serialization("export", cause)
	assert.ErrorIs(t, err, cause)
}
