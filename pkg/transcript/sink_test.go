package transcript

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "out", "transcript.txt"), nil)
}

func readBack(t *testing.T, s *Sink) string {
	t.Helper()
	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestAppend_EmptyAndWhitespaceAreNoops(t *testing.T) {
	s := newTestSink(t)
	s.Truncate()
	before := readBack(t, s)
	s.Append("")
	s.Append("   \t\n ")
	require.Equal(t, before, readBack(t, s))
}

func TestAppend_SentencePunctuationGetsNewline(t *testing.T) {
	s := newTestSink(t)
	s.Truncate()
	for _, text := range []string{"Done.", "Really?", "Yes!"} {
		s.Truncate()
		s.Append(text)
		got := readBack(t, s)
		require.True(t, strings.HasSuffix(got, text+"\n"), "got %q", got)
		require.False(t, strings.HasSuffix(got, "\n\n"))
	}
}

func TestAppend_MidSentenceGetsNoNewline(t *testing.T) {
	s := newTestSink(t)
	s.Truncate()
	s.Append("partial")
	require.Equal(t, "partial", readBack(t, s))
}

func TestAppend_InsertsSpaceAfterNonWhitespaceByte(t *testing.T) {
	s := newTestSink(t)
	s.Truncate()
	s.Append("hello")
	s.Append("world.")
	require.Equal(t, "hello world.\n", readBack(t, s))
}

func TestAppend_NoSpaceAfterNewline(t *testing.T) {
	s := newTestSink(t)
	s.Truncate()
	s.Append("First sentence.")
	s.Append("Second sentence.")
	require.Equal(t, "First sentence.\nSecond sentence.\n", readBack(t, s))
}

func TestRenderAll_ReturnsLinesInOrder(t *testing.T) {
	s := newTestSink(t)
	s.Truncate()
	s.Append("Line one.")
	s.Append("Line two.")
	s.Append("Line three.")

	lines := s.RenderAll(io.Discard)
	require.Equal(t, []string{"Line one.", "Line two.", "Line three."}, lines)
}

func TestRenderAll_MissingFileYieldsEmpty(t *testing.T) {
	s := newTestSink(t)
	require.Empty(t, s.RenderAll(io.Discard))
}

func TestRenderAll_EmptyFileYieldsEmpty(t *testing.T) {
	s := newTestSink(t)
	s.Truncate()
	require.Empty(t, s.RenderAll(io.Discard))
}

func TestTruncate_ResetsExistingContent(t *testing.T) {
	s := newTestSink(t)
	s.Truncate()
	s.Append("Old content.")
	s.Truncate()
	require.Equal(t, "", readBack(t, s))
}
