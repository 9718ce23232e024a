package run

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

const configHelp = "Print the resolved configuration"

// repoSettings are the configurable values for a repository. Values can come
// from the [global] table of the config file, from a named repository table,
// or from command line flags; later sources override earlier ones.
type repoSettings struct {
	AuthorName    string `toml:"author_name"`
	AuthorAddress string `toml:"author_address"`
	Root          string `toml:"root"`
	StagingRoot   string `toml:"staging_root"`
	Region        string `toml:"region"`
	Profile       string `toml:"profile"`
	Endpoint      string `toml:"endpoint"`
	Bucket        string `toml:"bucket"`
}

// merge returns base with non-empty values from over replacing base's.
func (base repoSettings) merge(over repoSettings) repoSettings {
	if over.AuthorName != "" {
		base.AuthorName = over.AuthorName
	}
	if over.AuthorAddress != "" {
		base.AuthorAddress = over.AuthorAddress
	}
	if over.Root != "" {
		base.Root = over.Root
	}
	if over.StagingRoot != "" {
		base.StagingRoot = over.StagingRoot
	}
	if over.Region != "" {
		base.Region = over.Region
	}
	if over.Profile != "" {
		base.Profile = over.Profile
	}
	if over.Endpoint != "" {
		base.Endpoint = over.Endpoint
	}
	if over.Bucket != "" {
		base.Bucket = over.Bucket
	}
	return base
}

// location returns the repository's root location string: either an
// s3://bucket/path url or a local directory path.
func (s repoSettings) location() string {
	if s.Bucket != "" {
		return "s3://" + s.Bucket + "/" + s.Root
	}
	return s.Root
}

// defaultConfigPath returns the default location of the config file.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ocfl", "ocfl.toml")
}

// loadSettings reads the TOML config file and returns the settings for the
// named repository merged over the [global] table. If name is empty, only
// the global settings are returned. A missing config file is not an error
// unless its path was set explicitly.
func loadSettings(configPath string, name string) (repoSettings, error) {
	explicit := configPath != ""
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	var tables map[string]repoSettings
	if configPath != "" {
		if _, err := toml.DecodeFile(configPath, &tables); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return repoSettings{}, fmt.Errorf("reading config %s: %w", configPath, err)
			}
		}
	}
	merged := tables["global"]
	if name != "" {
		repo, ok := tables[name]
		if !ok {
			return repoSettings{}, fmt.Errorf("no repository named %q in config %s", name, configPath)
		}
		merged = merged.merge(repo)
	}
	return merged, nil
}

type configCmd struct{}

func (cmd *configCmd) Run(ctx context.Context, env *runEnv) error {
	configPath := env.configFile
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	fmt.Fprintln(env.stdout, "config file:", configPath)
	var tables map[string]repoSettings
	if _, err := toml.DecodeFile(configPath, &tables); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		fmt.Fprintln(env.stdout, "(config file does not exist)")
	}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := tables[name]
		fmt.Fprintf(env.stdout, "\n[%s]\n", name)
		printSetting(env, "author_name", s.AuthorName)
		printSetting(env, "author_address", s.AuthorAddress)
		printSetting(env, "root", s.Root)
		printSetting(env, "staging_root", s.StagingRoot)
		printSetting(env, "region", s.Region)
		printSetting(env, "profile", s.Profile)
		printSetting(env, "endpoint", s.Endpoint)
		printSetting(env, "bucket", s.Bucket)
	}
	fmt.Fprintf(env.stdout, "\nresolved root: %s\n", env.settings.location())
	return nil
}

func printSetting(env *runEnv, key, val string) {
	if val == "" {
		return
	}
	fmt.Fprintf(env.stdout, "%s = %q\n", key, val)
}
