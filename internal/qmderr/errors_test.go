package qmderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(Usage(CodeMalformedQuery, "bad query")))
	assert.Equal(t, 1, ExitCode(External(CodeIO, errors.New("disk"))))
	assert.Equal(t, 1, ExitCode(errors.New("plain error")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindExternal, CodeSQLEngine, fmt.Errorf("query failed: %w", cause))

	require.NotNil(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, err.Retryable)

	assert.Nil(t, Wrap(KindExternal, CodeSQLEngine, nil))
}

func TestIsMatchesKindAndCode(t *testing.T) {
	err := Cancelled(CodeSessionReleased, "released mid-call")
	assert.True(t, errors.Is(err, ErrSessionReleased))
	assert.False(t, errors.Is(err, Cancelled(CodeShutdown, "shutdown")))
}

func TestDetailsAndSuggestionChain(t *testing.T) {
	err := Usage(CodeUnknownDocument, "no such document").
		WithDetail("path", "notes/a.md").
		WithSuggestion("try `qmd status` to list collections")

	assert.Equal(t, "notes/a.md", err.Details["path"])
	assert.Contains(t, err.Suggestion, "qmd status")
	assert.Equal(t, "[E_UNKNOWN_DOCUMENT] no such document", err.Error())
}

func TestFatalIsNeverRetryable(t *testing.T) {
	err := Fatal(CodeCorruptDatabase, errors.New("bad page"))
	assert.False(t, err.Retryable)
	assert.Equal(t, KindFatal, err.Kind)
}
