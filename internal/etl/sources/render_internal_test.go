package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepNames(steps []renderStep) []string {
	names := make([]string, len(steps))
	for i, st := range steps {
		names[i] = st.name
	}
	return names
}

func TestChromeRenderer_Steps(t *testing.T) {
	cases := []struct {
		name     string
		renderer ChromeRenderer
		want     []string
	}{
		{"bare", ChromeRenderer{}, []string{"navigate", "wait", "capture"}},
		{"scroll", ChromeRenderer{Scroll: true}, []string{"navigate", "wait", "scroll", "capture"}},
		{"expand", ChromeRenderer{ExpandSelector: "button.more"}, []string{"navigate", "wait", "expand", "capture"}},
		{"settle", ChromeRenderer{Settle: time.Second}, []string{"navigate", "wait", "settle", "capture"}},
		{"negative settle", ChromeRenderer{Settle: -1}, []string{"navigate", "wait", "capture"}},
		{
			"everything",
			ChromeRenderer{Scroll: true, ExpandSelector: "button.more", Settle: time.Second},
			[]string{"navigate", "wait", "scroll", "expand", "settle", "capture"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out string
			steps := tc.renderer.steps("https://dashboard.example/leaderboard", &out)
			require.Len(t, steps, len(tc.want))
			assert.Equal(t, tc.want, stepNames(steps))
			for _, st := range steps {
				assert.NotNil(t, st.action, st.name)
			}
		})
	}
}

func TestExpandScript_QuotesSelector(t *testing.T) {
	script := expandScript(`button[data-x="1"]`)
	assert.Contains(t, script, `document.querySelector("button[data-x=\"1\"]")`)
}

func TestNewTableSource_ChromeDefaults(t *testing.T) {
	src, err := NewTableSource(TableConfig{URL: "https://dashboard.example/leaderboard", Scroll: true}, nil)
	require.NoError(t, err)

	chrome, ok := src.renderer.(*ChromeRenderer)
	require.True(t, ok)
	assert.Equal(t, DefaultSettle, chrome.Settle)
	assert.Equal(t, DefaultRowSelector, chrome.WaitSelector)
	assert.True(t, chrome.Scroll)

	src, err = NewTableSource(TableConfig{URL: "https://dashboard.example/leaderboard", Settle: -1}, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), src.renderer.(*ChromeRenderer).Settle, "negative settle is kept")
}
