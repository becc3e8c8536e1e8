package sqlite

import "fmt"

const defaultBusyTimeout = 5000

// Config holds the SQLite conversation store configuration.
type Config struct {
	// Name identifies the in-memory database. Defaults to a unique name per
	// process so that two stores never share state.
	Name string `yaml:"name"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	return nil
}

// dsn returns a shared-cache in-memory DSN. The database lives as long as
// one connection to it stays open.
func (c *Config) dsn() string {
	return "file:" + c.Name + "?mode=memory&cache=shared"
}
