package safety

import "slices"

// Report is the analyzer's verdict for one candidate system
type Report struct {
	Warnings        []string `json:"warnings"`
	RequiresReboot  bool     `json:"requiresReboot"`
	UnsafeImmediate bool     `json:"unsafeImmediate"`
}

// Safe reports whether the candidate can be applied immediately
func (r *Report) Safe() bool {
	return r == nil || (len(r.Warnings) == 0 && !r.RequiresReboot && !r.UnsafeImmediate)
}

func (r *Report) warn(msg string, reboot, unsafe bool) {
	if !slices.Contains(r.Warnings, msg) {
		r.Warnings = append(r.Warnings, msg)
	}
	r.RequiresReboot = r.RequiresReboot || reboot
	r.UnsafeImmediate = r.UnsafeImmediate || unsafe
}

// finalize enforces that anything unsafe to apply now also needs a reboot
func (r *Report) finalize() *Report {
	if r.UnsafeImmediate {
		r.RequiresReboot = true
	}
	return r
}

// Unknown is the report used when the systems could not be compared
func Unknown(reason error) *Report {
	r := &Report{}
	msg := "could not compare the running system with the new build"
	if reason != nil {
		msg += ": " + reason.Error()
	}
	r.warn(msg, true, true)
	return r.finalize()
}
