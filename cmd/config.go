package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AccessTokenDuration  time.Duration `env:"ACCESS_TOKEN_DURATION,default=1h"`
	RefreshTokenDuration time.Duration `env:"REFRESH_TOKEN_DURATION,default=720h"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	CensoredWordsFile    string        `env:"CENSORED_WORDS_FILE"`
	CharacterReplacement rune          `env:"CHARACTER_REPLACEMENT,default=*"`
}
