package es

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerError_Unwrap(t *testing.T) {
	cause := errors.New("uniqueness rule violated")
	err := &HandlerError{Handler: "readModelHandler", Err: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "readModelHandler")
	require.Contains(t, err.Error(), "rejected the write")
}

func TestPostCommitError_UnwrapAll(t *testing.T) {
	first := errors.New("mailer down")
	second := errors.New("bus unreachable")
	err := &PostCommitError{Errs: []error{first, second}}

	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
	require.Contains(t, err.Error(), "2 post-commit failure(s)")
}

func TestCodecError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected end of input")
	err := &CodecError{Op: "unmarshal", Err: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "codec unmarshal")
}

func TestConflict_WrappedDetection(t *testing.T) {
	wrapped := fmt.Errorf("persist failed: %w", ErrConflict)
	require.ErrorIs(t, wrapped, ErrConflict)
}
