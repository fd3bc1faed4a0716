package monitor

import "time"

type Status struct {
	Store      bool      `json:"store"`
	StoreName  string    `json:"store_driver"`
	Redis      bool      `json:"redis"`
	RedisUsed  bool      `json:"redis_enabled"`
	Outbox     bool      `json:"outbox"`
	OutboxSize int       `json:"outbox_size"`
	LastCheck  time.Time `json:"last_check"`
}

// Healthy reports whether every configured dependency answered the last check.
func (s Status) Healthy() bool {
	return s.Store && (!s.RedisUsed || s.Redis)
}
