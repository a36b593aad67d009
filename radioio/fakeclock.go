package radioio

// FakeClock is a manually-advanced Clock for deterministic scheduler tests.
type FakeClock struct {
	us    uint64
	epoch int64
	haveEpoch bool
}

// NewFakeClock returns a clock starting at us=0 with no wall-clock reference.
func NewFakeClock() *FakeClock { return &FakeClock{} }

func (c *FakeClock) NowUs() uint64 { return c.us }

// Advance moves the clock forward by d microseconds.
func (c *FakeClock) Advance(d uint64) { c.us += d }

// SetEpoch gives the clock a wall-clock reference from this point on.
func (c *FakeClock) SetEpoch(epochUs int64) {
	c.epoch = epochUs
	c.haveEpoch = true
}

func (c *FakeClock) EpochNowUs() (int64, bool) {
	if !c.haveEpoch {
		return 0, false
	}
	return c.epoch + int64(c.us), true
}
