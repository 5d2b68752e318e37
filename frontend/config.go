package frontend

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/dwex-project/dwex/errors"
)

// Config is the front-end's debuginfo search configuration: the roots
// FindDebugInfo walks, and whether debuginfod-style network lookup is
// permitted. Loaded with Viper following the config idiom in
// _examples/Manu343726-cucaracha/cmd/root.go (the one example repo in the
// pack wiring Viper for a debugger-adjacent CLI).
type Config struct {
	SearchPaths    []string `mapstructure:"search_paths"`
	DebuginfodURLs []string `mapstructure:"debuginfod_urls"`
}

// DefaultSearchPaths mirrors the paths GDB and elfutils both search by
// default for separate debuginfo.
var DefaultSearchPaths = []string{
	"/usr/lib/debug",
}

// LoadConfig reads dwex's configuration the way cucaracha's root.go reads
// its own: an explicit path if given, else $HOME/.dwex.yaml, with
// DWEX_-prefixed environment variables automatically overriding any key.
// A missing config file is not an error - DefaultSearchPaths applies.
func LoadConfig(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("dwex")
	v.AutomaticEnv()

	v.SetDefault("search_paths", DefaultSearchPaths)
	v.SetDefault("debuginfod_urls", []string{})

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".dwex")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Errorf(errors.ConfigReadError, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Errorf(errors.ConfigDecodeError, err)
	}

	return &cfg, nil
}

// BuildIDPath is the canonical /usr/lib/debug/.build-id/xx/yyyy.debug path
// for a build-id under one search root, exposed for callers that want to
// report where FindDebugInfo would look. It returns "" for a build-id of
// two characters or fewer.
func BuildIDPath(root, buildID string) string {
	if len(buildID) <= 2 {
		return ""
	}
	return filepath.Join(root, ".build-id", buildID[:2], buildID[2:]+".debug")
}
