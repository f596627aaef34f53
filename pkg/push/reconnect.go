package push

import "time"

const DefaultReconnectInterval = 3 * time.Second

// ReconnectPolicy decides how long to wait before reconnect attempt number
// `attempt` (0-based, reset after every successful open).  Returning false
// stops reconnecting.
type ReconnectPolicy interface {
	NextDelay(attempt int) (time.Duration, bool)
}

// ConstantDelay retries forever at a fixed interval.
type ConstantDelay struct {
	Interval time.Duration
}

func (c *ConstantDelay) NextDelay(attempt int) (time.Duration, bool) {
	if c.Interval <= 0 {
		return DefaultReconnectInterval, true
	}
	return c.Interval, true
}
