package transcript

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webshell/internal/testutils"
)

func TestRenderer_FirstInsertHasNoSeparator(t *testing.T) {
	view := testutils.NewMockView()
	r := NewRenderer(view)

	assert.False(t, r.HasShownResponse())
	r.InsertLine("hello", "")

	assert.Equal(t, "hello", view.Text())
	assert.True(t, r.HasShownResponse())
}

func TestRenderer_AppendOnly(t *testing.T) {
	view := testutils.NewMockView()
	r := NewRenderer(view)

	payloads := []any{"one", 2, map[string]any{"k": "v"}, "four"}
	var seen []string
	for _, p := range payloads {
		before := view.Text()
		r.InsertLine(p, "")
		after := view.Text()

		require.True(t, len(after) > len(before))
		assert.Equal(t, before, after[:len(before)], "prior text must not change")
		seen = append(seen, ToString(p))
	}

	expected := seen[0]
	for _, s := range seen[1:] {
		expected += "\n" + s
	}
	assert.Equal(t, expected, view.Text())
	assert.Len(t, r.Entries(), len(payloads))
}

func TestRenderer_PrefixIndentation(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		data     any
		expected string
	}{
		{name: "single line", prefix: "> ", data: "db.users.find()", expected: "> db.users.find()"},
		{name: "continuation lines", prefix: "> ", data: "line1\nline2", expected: "> line1\n  line2"},
		{name: "three lines", prefix: ">>> ", data: "a\nb\nc", expected: ">>> a\n    b\n    c"},
		{name: "no prefix", prefix: "", data: "a\nb", expected: "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := testutils.NewMockView()
			NewRenderer(view).InsertLine(tt.data, tt.prefix)
			assert.Equal(t, tt.expected, view.Text())
		})
	}
}

func TestRenderer_PlainTextClass(t *testing.T) {
	view := testutils.NewMockView()
	r := NewRenderer(view)

	r.InsertLine("x = 1", "> ")
	r.InsertLine("first\nsecond", "")
	r.InsertLine(map[string]any{"a": 1}, "")
	r.InsertLine("last", "")

	// line 0: echo, lines 1-2: plain string, lines 3-5: structured, line 6: plain
	assert.Empty(t, view.Classes(0), "prefixed echo is not plain text")
	assert.Equal(t, []string{PlainTextClass}, view.Classes(1))
	assert.Equal(t, []string{PlainTextClass}, view.Classes(2))
	for i := 3; i <= 5; i++ {
		assert.Empty(t, view.Classes(i), "structured output keeps its highlighting")
	}
	assert.Equal(t, []string{PlainTextClass}, view.Classes(6))

	entries := r.Entries()
	require.Len(t, entries, 4)
	assert.True(t, entries[0].Prefixed)
	assert.False(t, entries[0].IsPlainText)
	assert.True(t, entries[1].IsPlainText)
	assert.False(t, entries[2].IsPlainText)
}

func TestRenderer_ViewSideEffects(t *testing.T) {
	view := testutils.NewMockView()
	r := NewRenderer(view)
	assert.False(t, view.Visible)

	r.InsertLine("a", "")
	assert.True(t, view.Visible)
	assert.Equal(t, 1, view.Nudged)
	assert.Equal(t, 1, view.Refreshes)
	assert.Equal(t, 1, view.Scrolls)

	r.InsertLine("b\nc", "")
	assert.Equal(t, 2, view.Refreshes)
	assert.Equal(t, []int{1, 3}, view.ScrollCalls, "scroll happens after the text is in place")
}

func TestRenderer_InsertArrayRefreshesOnce(t *testing.T) {
	view := testutils.NewMockView()
	r := NewRenderer(view)

	r.InsertArray([]any{"a", "b", "c"})

	assert.Equal(t, "a\nb\nc", view.Text())
	assert.Equal(t, 1, view.Refreshes)
	assert.Equal(t, 3, view.Scrolls)
	assert.Equal(t, 3, view.Nudged)
}

func TestRenderer_ErrorPayload(t *testing.T) {
	view := testutils.NewMockView()
	NewRenderer(view).InsertLine(errors.New("boom"), "")

	assert.Equal(t, "boom", view.Text())
	assert.Empty(t, view.Classes(0), "only string payloads are tagged")
}

func TestRenderer_ConcurrentInserts(t *testing.T) {
	view := testutils.NewMockView()
	r := NewRenderer(view)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.InsertLine("row", "")
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, view.LineCount())
	assert.Len(t, r.Entries(), 20)
}
