package scheduler

import "github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"

// DriftTracker estimates the wall-clock drift of the monotonic clock, in
// parts per million, from successive (monotonic, epoch) pairs observed
// whenever a wall-clock source is available (spec.md §5). The estimate is
// advisory: the scheduler's phase timing is always driven by the monotonic
// clock, never by this correction.
type DriftTracker struct {
	have       bool
	lastMonoUs uint64
	lastEpoch  int64
	ppm        int32
}

// Observe folds in one (monotonic, epoch) sample pair. The very first
// sample only seeds the tracker; ppm is computed from the second sample on.
func (d *DriftTracker) Observe(monoUs uint64, epochUs int64) {
	if !d.have {
		d.have = true
		d.lastMonoUs = monoUs
		d.lastEpoch = epochUs
		return
	}
	monoDelta := monoUs - d.lastMonoUs
	if monoDelta == 0 {
		return
	}
	epochDelta := epochUs - d.lastEpoch
	// ppm = (epochDelta - monoDelta) / monoDelta * 1e6, clamped below.
	diff := epochDelta - int64(monoDelta)
	ppm := diff * 1_000_000 / int64(monoDelta)
	d.ppm = clampPPM(ppm)
	d.lastMonoUs = monoUs
	d.lastEpoch = epochUs
}

// PPM returns the last clamped drift estimate.
func (d *DriftTracker) PPM() int32 { return d.ppm }

// CorrectionUs returns the PPM-scaled correction for an interval of
// intervalUs microseconds, clamped so it never overflows for intervals up
// to one hour (spec.md §5).
func (d *DriftTracker) CorrectionUs(intervalUs uint64) int64 {
	return DriftCorrectionUs(intervalUs, d.ppm)
}

// DriftCorrectionUs computes the clamped PPM correction for intervalUs,
// capped at ±MaxDriftPPM and at a one-hour interval so the multiplication
// cannot overflow an int64.
func DriftCorrectionUs(intervalUs uint64, ppm int32) int64 {
	clamped := clampPPM(int64(ppm))
	const maxIntervalUs = 3_600_000_000
	if intervalUs > maxIntervalUs {
		intervalUs = maxIntervalUs
	}
	return int64(intervalUs) * int64(clamped) / 1_000_000
}

func clampPPM(ppm int64) int32 {
	if ppm > meshconst.MaxDriftPPM {
		return meshconst.MaxDriftPPM
	}
	if ppm < -meshconst.MaxDriftPPM {
		return -meshconst.MaxDriftPPM
	}
	return int32(ppm)
}
