package report

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalize_TerminalStates(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		ctx     Context
		success bool
		status  Status
		action  Action
	}{
		{
			name:    "sent with pending confirmation",
			state:   StateSent,
			ctx:     Context{Status: StatusPending, Action: ActionConnect, Message: "invitation sent"},
			success: true, status: StatusPending, action: ActionConnect,
		},
		{
			name:    "already connected",
			state:   StateAlreadyConnected,
			ctx:     Context{Status: StatusConnected},
			success: true, status: StatusConnected, action: ActionNone,
		},
		{
			name:    "already pending",
			state:   StateAlreadyPending,
			ctx:     Context{Status: StatusPending, Action: ActionNone},
			success: true, status: StatusPending, action: ActionNone,
		},
		{
			name:    "failed overrides status",
			state:   StateFailed,
			ctx:     Context{Status: StatusSent, Action: ActionNone},
			success: false, status: StatusFailed, action: ActionNone,
		},
		{
			name:    "sent without status",
			state:   StateSent,
			ctx:     Context{},
			success: true, status: StatusUnknown, action: ActionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Finalize(tt.state, tt.ctx)
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.action, res.Action)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestFinalize_NonTerminalState(t *testing.T) {
	res := Finalize(StateButtonClicked, Context{Action: ActionConnect})

	assert.False(t, res.Success)
	assert.Equal(t, StatusUnknown, res.Status)
	assert.Equal(t, ActionConnect, res.Action)
	assert.Contains(t, res.Message, "BUTTON_CLICKED")
}

func TestFinalize_ZeroValue(t *testing.T) {
	res := Finalize("", Context{})

	assert.False(t, res.Success)
	assert.Equal(t, StatusUnknown, res.Status)
	assert.Equal(t, ActionNone, res.Action)
	assert.Contains(t, res.Message, "START")
}

func TestFinalize_ScreenshotAndError(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	res := Finalize(StateFailed, Context{Screenshot: png, Err: errors.New("target closed")})

	assert.Equal(t, base64.StdEncoding.EncodeToString(png), res.Screenshot)
	assert.Equal(t, "target closed", res.Error)

	decoded, err := DecodeScreenshot(res.Screenshot)
	require.NoError(t, err)
	assert.Equal(t, png, decoded)

	_, err = DecodeScreenshot("not base64!")
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	assert.Equal(t, ActionBoth, Combine(true, true))
	assert.Equal(t, ActionConnect, Combine(true, false))
	assert.Equal(t, ActionFollow, Combine(false, true))
	assert.Equal(t, ActionNone, Combine(false, false))
}

func TestTerminal(t *testing.T) {
	for _, s := range []State{StateSent, StateFailed, StateAlreadyConnected, StateAlreadyPending} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []State{StateStart, StateNavigated, StateStatusChecked, StateActionable, StateButtonClicked, StateDialogHandled} {
		assert.False(t, s.Terminal(), s)
	}
}
