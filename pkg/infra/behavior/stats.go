package behavior

import (
	"math"

	"github.com/ShieldWorks/AdmitGate/pkg/domain/behavior"
)

const nearZeroVelocity = 2.0 // px/s, below this a sample counts as a stop

// AnalyzePatterns reduces one flushed batch to its aggregate statistics.
// Events are assumed to be in arrival order.
func AnalyzePatterns(batch []behavior.Event) behavior.PatternStats {
	stats := behavior.PatternStats{EventCount: len(batch)}
	if len(batch) == 0 {
		return stats
	}
	stats.Channel = batch[0].Channel

	switch stats.Channel {
	case behavior.ChannelKeystroke:
		analyzeKeystrokes(batch, &stats)
	case behavior.ChannelTouch:
		analyzeTouch(batch, &stats)
	default:
		analyzePointer(batch, &stats)
	}

	stats.TimingConsistency = timingConsistency(batch)
	return stats
}

func analyzePointer(batch []behavior.Event, stats *behavior.PatternStats) {
	if len(batch) < 2 {
		return
	}

	velocities := make([]float64, 0, len(batch)-1)
	var pathLength float64
	var prevDX, prevDY float64

	for i := 1; i < len(batch); i++ {
		dx := batch[i].X - batch[i-1].X
		dy := batch[i].Y - batch[i-1].Y
		dist := math.Hypot(dx, dy)
		pathLength += dist

		dt := batch[i].Timestamp.Sub(batch[i-1].Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		v := dist / dt
		velocities = append(velocities, v)
		if v < nearZeroVelocity {
			stats.StopCount++
		}

		if i > 1 && (dx*prevDX+dy*prevDY) < 0 {
			stats.DirectionChanges++
		}
		prevDX, prevDY = dx, dy
	}

	stats.AvgVelocity, stats.VelocityVariance = meanVariance(velocities)

	// Linearity: net displacement over traveled path. A perfectly straight
	// machine-generated move scores 1.0.
	net := math.Hypot(batch[len(batch)-1].X-batch[0].X, batch[len(batch)-1].Y-batch[0].Y)
	if pathLength > 0 {
		stats.Linearity = net / pathLength
	}
}

func analyzeKeystrokes(batch []behavior.Event, stats *behavior.PatternStats) {
	if len(batch) < 2 {
		return
	}
	span := batch[len(batch)-1].Timestamp.Sub(batch[0].Timestamp).Seconds()
	if span > 0 {
		stats.TypingSpeed = float64(len(batch)) / span
	}

	intervals := interEventIntervals(batch)
	if len(intervals) > 0 {
		stats.ReactionTime = intervals[0] * 1000
	}
	stats.AvgVelocity, stats.VelocityVariance = meanVariance(intervals)
}

func analyzeTouch(batch []behavior.Event, stats *behavior.PatternStats) {
	analyzePointer(batch, stats)

	multiTouch := 0
	maxTouches := 0
	for _, e := range batch {
		if e.Touches > 1 {
			multiTouch++
		}
		if e.Touches > maxTouches {
			maxTouches = e.Touches
		}
	}
	if len(batch) > 0 {
		stats.GestureComplexity = float64(multiTouch) / float64(len(batch)) * float64(maxTouches)
	}
}

// timingConsistency is 1 minus the normalized variance of inter-event
// intervals. Values near 1.0 mean metronome-regular input.
func timingConsistency(batch []behavior.Event) float64 {
	intervals := interEventIntervals(batch)
	if len(intervals) < 2 {
		return 0
	}
	mean, variance := meanVariance(intervals)
	if mean == 0 {
		return 0
	}
	cv := variance / (mean * mean)
	if cv > 1 {
		cv = 1
	}
	return 1 - cv
}

func interEventIntervals(batch []behavior.Event) []float64 {
	if len(batch) < 2 {
		return nil
	}
	intervals := make([]float64, 0, len(batch)-1)
	for i := 1; i < len(batch); i++ {
		intervals = append(intervals, batch[i].Timestamp.Sub(batch[i-1].Timestamp).Seconds())
	}
	return intervals
}

func meanVariance(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return mean, variance
}
