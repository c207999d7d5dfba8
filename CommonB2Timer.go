package box2d

import "time"

// B2Timer measures elapsed wall-clock time in milliseconds, mirroring the
// original engine's platform timer used for profiling.
type B2Timer struct {
	start time.Time
}

func MakeB2Timer() B2Timer {
	return B2Timer{start: time.Now()}
}

func (t *B2Timer) Reset() {
	t.start = time.Now()
}

func (t *B2Timer) GetMilliseconds() float64 {
	return float64(time.Since(t.start)) / float64(time.Millisecond)
}
