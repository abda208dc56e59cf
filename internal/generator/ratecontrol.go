package generator

// FPSMode is the frame-drop strategy chosen by RateControl.
type FPSMode int

const (
	// FPSModeSame passes every chunk through: target >= raw.
	FPSModeSame FPSMode = iota
	// FPSModeSkip drops every k-th chunk: raw/2 <= target < raw.
	FPSModeSkip
	// FPSModeRemain keeps only every k-th chunk: target < raw/2.
	FPSModeRemain
)

// RateControl decides how raw-fps input is thinned down to target-fps,
// picking skip-mode (drop every interval-th chunk) when target is at
// least half of raw, else remain-mode (keep only every interval-th
// chunk) — scenario S6's `target >= raw/2` branch rule.
type RateControl struct {
	Mode     FPSMode
	Interval int // meaning depends on Mode; zero in FPSModeSame
}

// NewRateControl computes the FPS adjustment mode and interval for a
// source's raw and target chunk rates. target is clamped to rawFPS.
func NewRateControl(rawFPS, targetFPS int) RateControl {
	if targetFPS > rawFPS {
		targetFPS = rawFPS
	}
	switch {
	case targetFPS >= rawFPS:
		return RateControl{Mode: FPSModeSame}
	case targetFPS < rawFPS/2:
		return RateControl{Mode: FPSModeRemain, Interval: rawFPS / targetFPS}
	default:
		return RateControl{Mode: FPSModeSkip, Interval: rawFPS / (rawFPS - targetFPS)}
	}
}

// Keep reports whether the chunk at the given 1-based count should be
// forwarded to the pipeline.
func (r RateControl) Keep(count int) bool {
	switch r.Mode {
	case FPSModeSame:
		return true
	case FPSModeSkip:
		return r.Interval == 0 || count%r.Interval != 0
	case FPSModeRemain:
		return r.Interval != 0 && count%r.Interval == 0
	default:
		return true
	}
}
