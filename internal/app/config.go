package app

import (
	"github.com/ontomap/sssom-curator/internal/platform/envutil"
)

// Backend selection values for Config.Backend.
const (
	BackendMemory   = "memory"
	BackendDatabase = "database"
)

type Config struct {
	LogMode string
	Port    string
	// Backend picks the controller implementation.
	Backend string
	// SQLitePath backs the database controller; ":memory:" works.
	SQLitePath string
	// UsePostgres switches the database backend off sqlite.
	UsePostgres bool
	// EagerPersist flushes to disk after every mark.
	EagerPersist bool
}

func LoadConfig() Config {
	return Config{
		LogMode:      envutil.String("LOG_MODE", "development"),
		Port:         envutil.String("PORT", "5000"),
		Backend:      envutil.String("CURATOR_BACKEND", BackendMemory),
		SQLitePath:   envutil.String("CURATOR_SQLITE_PATH", "curator.sqlite"),
		UsePostgres:  envutil.Bool("CURATOR_USE_POSTGRES", false),
		EagerPersist: envutil.Bool("CURATOR_EAGER_PERSIST", true),
	}
}
