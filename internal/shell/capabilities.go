package shell

// DefaultRefreshRate is used when the compositor does not report one.
const DefaultRefreshRate = 60.0

// Capabilities is negotiated once when softbright is enabled and never
// re-probed.
type Capabilities struct {
	RefreshRate          float64
	KeepFocusWhileHidden bool
	InhibitUnfocus       bool
}

// Negotiate probes the host for optional features.
func Negotiate(h Host) Capabilities {
	caps := Capabilities{RefreshRate: DefaultRefreshRate}

	if rr, ok := h.Compositor().(RefreshRater); ok {
		if rate := rr.RefreshRate(); rate > 0 {
			caps.RefreshRate = rate
		}
	}

	input := h.Input()
	if _, ok := input.(FocusKeeper); ok {
		caps.KeepFocusWhileHidden = true
	}
	if _, ok := input.(UnfocusInhibitor); ok {
		caps.InhibitUnfocus = true
	}
	return caps
}
