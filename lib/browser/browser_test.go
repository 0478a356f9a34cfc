package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	live := context.Background()
	dead, cancel := context.WithCancel(context.Background())
	cancel()

	expired, cancelExpired := context.WithTimeout(context.Background(), -time.Second)
	defer cancelExpired()

	cases := []struct {
		name   string
		tabCtx context.Context
		call   context.Context
		err    error
		want   error
	}{
		{"nil", live, live, nil, nil},
		{"tab cancelled", dead, live, errors.New("anything"), ErrSessionInvalid},
		{"invalid context", live, live, chromedp.ErrInvalidContext, ErrSessionInvalid},
		{"target closed message", live, live, errors.New("Target closed"), ErrSessionInvalid},
		{"deadline", live, expired, context.DeadlineExceeded, ErrTimeout},
		{"polling timeout", live, live, chromedp.ErrPollingTimeout, ErrTimeout},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.tabCtx, tc.call, tc.err)
			if tc.want == nil {
				require.NoError(t, got)
				return
			}
			require.ErrorIs(t, got, tc.want)
		})
	}

	plain := errors.New("javascript exception")
	require.Equal(t, plain, classify(live, live, plain))
	require.False(t, IsDead(plain))
	require.True(t, IsDead(fmt.Errorf("probe: %w", ErrSessionInvalid)))
}

func TestScriptsQuoteInput(t *testing.T) {
	script := selectByTextScript("#sess_state_code", `Bad "State"`)
	require.Contains(t, script, `document.querySelector("#sess_state_code")`)
	require.Contains(t, script, `"Bad \"State\""`)

	require.Equal(t, `document.querySelectorAll("#case_type option").length`, countScript("#case_type option"))
}
