package redis

// Key part constants shared by the cron lock and the callback replay guard.
const (
	KeyPartCronLock = "cron-lock"
	KeyPartCallback = "callback-seen"
)
