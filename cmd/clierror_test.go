package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCode_MapsCliErrors(t *testing.T) {
	require.Equal(t, exitSuccess, exitCode(nil))
	require.Equal(t, exitValidation, exitCode(newCLIError(exitValidation, errors.New("bad flag"))))
	require.Equal(t, exitOrchestrator, exitCode(newCLIError(exitOrchestrator, errors.New("boom"))))
	require.Equal(t, exitUnknown, exitCode(errors.New("unrecognized cobra error")))
}

func TestNewCLIError_NilErrStaysNil(t *testing.T) {
	require.NoError(t, newCLIError(exitValidation, nil))
}
