package noise

import "math"

// FlagThreshold is the minimum Stokes-V standard deviation a channel
// must show to be accepted. The comparison runs on the raw estimator
// output while the value reads like the display-scaled uJy/beam system
// used everywhere else in the pipeline; it is kept verbatim pending
// confirmation from the pipeline owners.
const FlagThreshold = 1e6

// Decision is the per-channel quality verdict.
type Decision int

const (
	// Accept copies all four polarization planes into the cube.
	Accept Decision = iota
	// Flag blanks all four polarization planes with NaN.
	Flag
)

func (d Decision) String() string {
	if d == Flag {
		return "flag"
	}
	return "accept"
}

// Evaluate gates a channel on its Stokes-V noise estimate. An
// unavailable estimate (NaN) flags the channel, as does anything below
// FlagThreshold; the boundary itself accepts.
func Evaluate(stdStokesV float64) Decision {
	if math.IsNaN(stdStokesV) || stdStokesV < FlagThreshold {
		return Flag
	}
	return Accept
}
