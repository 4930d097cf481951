package imagestore

import "posemaster/pkg/storage"

// Target names the tier a value should be written to.
type Target int

const (
	TargetFast Target = iota
	TargetArchive
)

func (t Target) String() string {
	if t == TargetArchive {
		return "archive"
	}
	return "fast"
}

// Placement picks the tier for a value of size bytes before any write happens.
// The store still falls back to the archive tier when a fast write fails.
type Placement interface {
	Place(scope string, size int64) Target
}

// AlwaysFast tries the fast tier first for every value.
type AlwaysFast struct{}

func (AlwaysFast) Place(string, int64) Target { return TargetFast }

// ThresholdPlacement sends values larger than Threshold, or larger than what
// Quota reports as still available for the scope, straight to the archive.
// A zero Threshold or nil Quota disables that check.
type ThresholdPlacement struct {
	Threshold int64
	Quota     storage.QuotaReporter
}

func (p ThresholdPlacement) Place(scope string, size int64) Target {
	if p.Threshold > 0 && size > p.Threshold {
		return TargetArchive
	}
	// Available ignores the space an overwrite would free, so this may
	// pick the archive for a value the fast tier could still hold.
	if p.Quota != nil && size > p.Quota.Available(scope) {
		return TargetArchive
	}
	return TargetFast
}
