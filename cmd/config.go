package main

import (
	"fmt"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	StatsPort            int           `env:"STATS_PORT,default=8081"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=100"`
	PresenceSweep        time.Duration `env:"PRESENCE_SWEEP_INTERVAL,default=5m"`
	PresenceThreshold    time.Duration `env:"PRESENCE_THRESHOLD,default=6m"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	TelemetryInterval    time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	AuthSecret           string        `env:"AUTH_SECRET,required=true"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
