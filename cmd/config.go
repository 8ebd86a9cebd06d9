package main

import (
	"fmt"
	"time"
)

type Config struct {
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel                  string        `env:"LOG_LEVEL,required=true"`
	Host                      string        `env:"HOST,default=localhost"`
	Port                      int           `env:"PORT,default=8080"`
	Debug                     bool          `env:"DEBUG,default=false"`
	JWTSecret                 string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration         time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	GracePeriod               time.Duration `env:"GRACE_PERIOD,default=15s"`
	ApprovalTimeout           time.Duration `env:"APPROVAL_TIMEOUT,default=30s"`
	OnboardingTimeout         time.Duration `env:"ONBOARDING_TIMEOUT,default=30s"`
	TimerResolution           time.Duration `env:"TIMER_RESOLUTION,default=250ms"`
	HeartbeatInterval         time.Duration `env:"HEARTBEAT_INTERVAL,default=5s"`
	JournalBufferSize         int           `env:"JOURNAL_BUFFER_SIZE,default=1024"`
	LimitEvents               *int          `env:"LIMIT_EVENTS"`
	ModerationCharReplacement string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
}

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
