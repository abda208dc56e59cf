package generator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRateControl_S6_RemainMode(t *testing.T) {
	// Scenario S6: raw_fps=30, target_fps=10; target < raw/2 -> remain
	// mode with interval floor(30/10)=3.
	rc := NewRateControl(30, 10)
	require.Equal(t, FPSModeRemain, rc.Mode)
	require.Equal(t, 3, rc.Interval)
}

func TestNewRateControl_SkipMode(t *testing.T) {
	rc := NewRateControl(30, 20) // target >= raw/2, < raw
	require.Equal(t, FPSModeSkip, rc.Mode)
	require.Equal(t, 3, rc.Interval) // 30/(30-20)
}

func TestNewRateControl_SameMode(t *testing.T) {
	rc := NewRateControl(30, 30)
	require.Equal(t, FPSModeSame, rc.Mode)

	rc = NewRateControl(30, 40) // target clamped to raw
	require.Equal(t, FPSModeSame, rc.Mode)
}

func TestRateControl_RemainModeKeepsEveryIntervalTh(t *testing.T) {
	rc := NewRateControl(30, 10)
	kept := 0
	for i := 1; i <= 30; i++ {
		if rc.Keep(i) {
			kept++
		}
	}
	require.Equal(t, 10, kept)
}

func TestRateControl_SkipModeDropsEveryIntervalTh(t *testing.T) {
	rc := NewRateControl(30, 20)
	kept := 0
	for i := 1; i <= 30; i++ {
		if rc.Keep(i) {
			kept++
		}
	}
	require.Equal(t, 20, kept)
}
