package xpm

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/xpackagemanager/xpm/backend/dirbackend"
	"github.com/xpackagemanager/xpm/log"
)

// ConfigName is the name of the configuration file looked for under the XDG
// config directories.
const ConfigName = "xpm.toml"

const appDir = "xpm"

// Config holds everything a Manager needs to know about where things live.
type Config struct {
	// Root is the install root packages are installed into.
	Root string
	// Database is the installed database file. Defaults to a file in the
	// install root's state directory.
	Database string
	// Repositories is the directory repository files are read from.
	Repositories string
	// Cache holds package payloads, one directory per name and version.
	Cache string
	// Priorities overrides the priority a repository file declares, by
	// repository id.
	Priorities map[string]int
	// LogLevel is a logrus level name.
	LogLevel string
}

type rawConfig struct {
	Root         string         `toml:"root,omitempty"`
	Database     string         `toml:"database,omitempty"`
	Repositories string         `toml:"repositories,omitempty"`
	Cache        string         `toml:"cache,omitempty"`
	LogLevel     string         `toml:"log_level,omitempty"`
	Priority     map[string]int `toml:"priority,omitempty"`
}

// DefaultConfig returns the configuration used where no file says otherwise.
func DefaultConfig() Config {
	return Config{
		Root:         filepath.Join(xdg.DataHome, appDir, "root"),
		Repositories: filepath.Join(xdg.ConfigHome, appDir, "repos.d"),
		Cache:        filepath.Join(xdg.CacheHome, appDir, "packages"),
		LogLevel:     log.DefaultLevel,
	}
}

// DatabasePath returns the installed database file to use.
func (c Config) DatabasePath() string {
	if c.Database != "" {
		return c.Database
	}
	return filepath.Join(c.Root, dirbackend.StateDir, "installed.db")
}

// LockPath returns the file locked while a transaction runs on the root.
func (c Config) LockPath() string {
	return filepath.Join(c.Root, dirbackend.StateDir, "lock")
}

// Validate reports the first problem that would keep a Manager from using c.
func (c Config) Validate() error {
	switch {
	case c.Root == "":
		return errors.New("no install root configured")
	case c.Repositories == "":
		return errors.New("no repository directory configured")
	case c.Cache == "":
		return errors.New("no package cache configured")
	}
	return nil
}

// ReadConfig reads a TOML configuration from r. Settings absent from r keep
// their DefaultConfig value. Relative paths are taken relative to dir.
func ReadConfig(r io.Reader, dir string) (Config, error) {
	buf := &bytes.Buffer{}
	_, err := buf.ReadFrom(r)
	if err != nil {
		return Config{}, errors.Wrap(err, "Unable to read byte stream")
	}

	raw := rawConfig{}
	if err := toml.Unmarshal(buf.Bytes(), &raw); err != nil {
		return Config{}, errors.Wrap(err, "Unable to parse the config as TOML")
	}

	c := DefaultConfig()
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	if raw.Root != "" {
		c.Root = abs(raw.Root)
	}
	if raw.Database != "" {
		c.Database = abs(raw.Database)
	}
	if raw.Repositories != "" {
		c.Repositories = abs(raw.Repositories)
	}
	if raw.Cache != "" {
		c.Cache = abs(raw.Cache)
	}
	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	if len(raw.Priority) > 0 {
		c.Priorities = raw.Priority
	}
	return c, nil
}

// LoadConfig reads the configuration file at path. An empty path searches
// the XDG config directories for ConfigName, and finding nothing there
// yields DefaultConfig.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		found, err := xdg.SearchConfigFile(filepath.Join(appDir, ConfigName))
		if err != nil {
			return DefaultConfig(), nil
		}
		path = found
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to open config %s", path)
	}
	defer f.Close()

	c, err := ReadConfig(f, filepath.Dir(path))
	return c, errors.Wrapf(err, "error while parsing %s", path)
}

func (c Config) toRaw() rawConfig {
	return rawConfig{
		Root:         c.Root,
		Database:     c.Database,
		Repositories: c.Repositories,
		Cache:        c.Cache,
		LogLevel:     c.LogLevel,
		Priority:     c.Priorities,
	}
}

// MarshalTOML serializes the config into TOML via an intermediate raw form.
func (c Config) MarshalTOML() ([]byte, error) {
	result, err := toml.Marshal(c.toRaw())
	return result, errors.Wrap(err, "Unable to marshal config to TOML string")
}
