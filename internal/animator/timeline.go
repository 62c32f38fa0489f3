package animator

import "time"

// Frame is one scheduled redraw.
type Frame struct {
	Index int
	At    time.Time
	T     float64 // progress in [0,1]
	Zoom  float64
	Final bool // t reached 1; nothing is scheduled after it
}

// Timeline maps wall-clock time to animation progress. Progress never
// decreases from one frame to the next.
type Timeline struct {
	start    time.Time
	duration time.Duration
	k        float64
}

func NewTimeline(start time.Time, duration time.Duration, k float64) Timeline {
	return Timeline{start: start, duration: duration, k: k}
}

// Progress returns clamp((now-start)/duration, 0, 1).
func (tl Timeline) Progress(now time.Time) float64 {
	if tl.duration <= 0 {
		return 1
	}
	return clamp01(float64(now.Sub(tl.start)) / float64(tl.duration))
}

// First is the t=0 frame drawn as soon as recording starts.
func (tl Timeline) First() Frame {
	return Frame{At: tl.start, T: 0, Zoom: Zoom(0, tl.k), Final: tl.duration <= 0}
}

// Next schedules the frame after prev for a tick at now. It reports done,
// returning prev unchanged, once prev was the final frame.
func (tl Timeline) Next(prev Frame, now time.Time) (Frame, bool) {
	if prev.Final {
		return prev, true
	}
	t := tl.Progress(now)
	if t < prev.T {
		t = prev.T
	}
	if now.Before(prev.At) {
		now = prev.At
	}
	return Frame{
		Index: prev.Index + 1,
		At:    now,
		T:     t,
		Zoom:  Zoom(t, tl.k),
		Final: t >= 1,
	}, false
}

// Elapsed is the wall-clock time covered up to f.
func (tl Timeline) Elapsed(f Frame) time.Duration {
	return f.At.Sub(tl.start)
}

