package main

import "time"

type Config struct {
	BufferSize                int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize      int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	ModerationCharReplacement rune          `env:"MODERATION_CHARACTER_REPLACEMENT,required=true"`
	LimitMessages             *int          `env:"LIMIT_MESSAGES"`
	SinkTimeout               time.Duration `env:"SINK_TIMEOUT,required=true"`
	TypingTTL                 time.Duration `env:"TYPING_TTL,default=1500ms"`
	SweepInterval             time.Duration `env:"SWEEP_INTERVAL,default=500ms"`
	MetricInterval            time.Duration `env:"METRIC_INTERVAL,default=10s"`
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath             string        `env:"BLUGE_FILEPATH,required=true"`
	AllowedOrigins            string        `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	LogLevel                  string        `env:"LOG_LEVEL,required=true"`
	Host                      string        `env:"HOST,default=localhost"`
	Port                      int           `env:"PORT,default=8080"`
}
