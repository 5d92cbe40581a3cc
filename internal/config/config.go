// Package config declares the process configuration for transferctl,
// parsed from flags and environment variables via jessevdk/go-flags.
package config

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Store configures which backing store the CLI opens.
type Store struct {
	Driver string `long:"driver" env:"DRIVER" choice:"postgres" choice:"sqlite" default:"sqlite" description:"backing store driver"`
	DSN    string `long:"dsn" env:"DSN" description:"connection string (Postgres DSN, or a SQLite file path / :memory:)"`
}

// Locking holds the lock-wait budget flag. The value is parsed but not
// passed to the store: OpenPostgres and OpenSQLite take no lock-wait
// setting, so how long a contended lock is waited for is left to the
// database driver's own defaults.
type Locking struct {
	LockWait time.Duration `long:"lock-wait" env:"LOCK_WAIT" default:"5s" description:"lock-wait budget (parsed, not applied to the store)"`
}

// Logging configures logrus's output format and level.
type Logging struct {
	Level string `long:"level" env:"LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"minimum log level"`
	JSON  bool   `long:"json" env:"JSON" description:"emit logs as JSON instead of logrus's default text formatter"`
}

// Args is the full set of flags transferctl accepts, grouped the way
// jessevdk/go-flags renders them in --help.
type Args struct {
	Store   Store   `group:"Store" namespace:"store" env-namespace:"STORE"`
	Locking Locking `group:"Locking" namespace:"lock" env-namespace:"LOCK"`
	Log     Logging `group:"Logging" namespace:"log" env-namespace:"LOG"`
}

// Apply configures the standard logrus logger from Logging.
func (l Logging) Apply() {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if l.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
