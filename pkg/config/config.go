// Package config reads the configuration of a version graph
// installation and wires the configured stores.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/drone/envsubst"
	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"sigs.k8s.io/yaml"

	"github.com/mandelsoft/vergraph/pkg/utils"
)

var REALM = logging.DefineRealm("vergraph/config", "configuration")

var log = logging.DynamicLogger(logging.DefaultContext(), REALM)

const (
	FILE_NAME  = ".vgctl"
	ENV_PREFIX = "VERGRAPH_"
)

const (
	TYPE_MEMORY     = "memory"
	TYPE_FILESYSTEM = "filesystem"
	TYPE_SQLITE     = "sqlite"
	TYPE_REDIS      = "redis"
)

type GraphConfig struct {
	Type *string `json:"type,omitempty" toml:"type"`
	Path *string `json:"path,omitempty" toml:"path"`
}

type BucketConfig struct {
	Type     *string `json:"type,omitempty" toml:"type"`
	Path     *string `json:"path,omitempty" toml:"path"`
	Compress *bool   `json:"compress,omitempty" toml:"compress"`
	Address  *string `json:"address,omitempty" toml:"address"`
	Password *string `json:"password,omitempty" toml:"password"`
	DB       *int    `json:"db,omitempty" toml:"db"`
	Prefix   *string `json:"prefix,omitempty" toml:"prefix"`
}

type Config struct {
	Graph         GraphConfig  `json:"graph,omitempty" toml:"graph"`
	Bucket        BucketConfig `json:"bucket,omitempty" toml:"bucket"`
	Workers       *int         `json:"workers,omitempty" toml:"workers"`
	LogLevel      *string      `json:"logLevel,omitempty" toml:"logLevel"`
	WeightedPaths *bool        `json:"weightedPaths,omitempty" toml:"weightedPaths"`
}

// Default returns the configuration used if nothing is configured:
// a volatile memory graph and bucket.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			Type: utils.Pointer(TYPE_MEMORY),
		},
		Bucket: BucketConfig{
			Type:   utils.Pointer(TYPE_MEMORY),
			Prefix: utils.Pointer("vergraph/"),
		},
		Workers:  utils.Pointer(4),
		LogLevel: utils.Pointer("info"),
	}
}

// GetConfig composes the configuration from the defaults, the
// config files found in the home directory, the user config
// directory and the current directory, the explicitly given
// file and finally the VERGRAPH_* environment variables.
// Only the explicit file is required to exist.
func GetConfig(file string, fss ...vfs.FileSystem) (*Config, error) {
	fs := utils.OptionalDefaulted(vfs.FileSystem(osfs.OsFs), fss...)

	cfg := Default()
	var candidates []string
	if dir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, FILE_NAME))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, FILE_NAME))
	}
	candidates = append(candidates, FILE_NAME)

	for _, c := range candidates {
		add, err := ReadConfig(c, fs)
		if err != nil {
			if errors.Is(err, vfs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		log.Debug("using config {{file}}", "file", c)
		MergeConfig(cfg, add)
	}
	if file != "" {
		add, err := ReadConfig(file, fs)
		if err != nil {
			return nil, err
		}
		MergeConfig(cfg, add)
	}
	err := MergeEnv(cfg, os.Getenv)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadConfig reads a YAML or, for the extension .toml, a TOML
// config file. Variable references are substituted from the
// environment before decoding.
func ReadConfig(path string, fss ...vfs.FileSystem) (*Config, error) {
	fs := utils.OptionalDefaulted(vfs.FileSystem(osfs.OsFs), fss...)

	data, err := vfs.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, filepath.Ext(path) == ".toml")
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte, istoml bool) (*Config, error) {
	s, err := envsubst.EvalEnv(string(data))
	if err != nil {
		return nil, err
	}
	var cfg Config
	if istoml {
		err = toml.Unmarshal([]byte(s), &cfg)
	} else {
		err = yaml.UnmarshalStrict([]byte(s), &cfg)
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MergeConfig overwrites the settings of cfg set in add.
func MergeConfig(cfg *Config, add *Config) {
	if add == nil {
		return
	}
	merge(&cfg.Graph.Type, add.Graph.Type)
	merge(&cfg.Graph.Path, add.Graph.Path)

	merge(&cfg.Bucket.Type, add.Bucket.Type)
	merge(&cfg.Bucket.Path, add.Bucket.Path)
	merge(&cfg.Bucket.Compress, add.Bucket.Compress)
	merge(&cfg.Bucket.Address, add.Bucket.Address)
	merge(&cfg.Bucket.Password, add.Bucket.Password)
	merge(&cfg.Bucket.DB, add.Bucket.DB)
	merge(&cfg.Bucket.Prefix, add.Bucket.Prefix)

	merge(&cfg.Workers, add.Workers)
	merge(&cfg.LogLevel, add.LogLevel)
	merge(&cfg.WeightedPaths, add.WeightedPaths)
}

func merge[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// MergeEnv applies the VERGRAPH_* variables provided by getenv.
func MergeEnv(cfg *Config, getenv func(string) string) error {
	var err error

	str := func(dst **string, name string) {
		if v := getenv(ENV_PREFIX + name); v != "" {
			*dst = utils.Pointer(v)
		}
	}
	parsed := func(name string, parse func(v string) error) {
		if v := getenv(ENV_PREFIX + name); v != "" && err == nil {
			if perr := parse(v); perr != nil {
				err = fmt.Errorf("invalid value %q for %s%s: %w", v, ENV_PREFIX, name, perr)
			}
		}
	}

	str(&cfg.Graph.Type, "GRAPH_TYPE")
	str(&cfg.Graph.Path, "GRAPH_PATH")
	str(&cfg.Bucket.Type, "BUCKET_TYPE")
	str(&cfg.Bucket.Path, "BUCKET_PATH")
	str(&cfg.Bucket.Address, "BUCKET_ADDRESS")
	str(&cfg.Bucket.Password, "BUCKET_PASSWORD")
	str(&cfg.Bucket.Prefix, "BUCKET_PREFIX")
	str(&cfg.LogLevel, "LOG_LEVEL")

	parsed("BUCKET_DB", func(v string) error {
		n, err := strconv.Atoi(v)
		cfg.Bucket.DB = &n
		return err
	})
	parsed("BUCKET_COMPRESS", func(v string) error {
		b, err := strconv.ParseBool(v)
		cfg.Bucket.Compress = &b
		return err
	})
	parsed("WORKERS", func(v string) error {
		n, err := strconv.Atoi(v)
		cfg.Workers = &n
		return err
	})
	parsed("WEIGHTED_PATHS", func(v string) error {
		b, err := strconv.ParseBool(v)
		cfg.WeightedPaths = &b
		return err
	})
	return err
}

// Validate checks the store types and their required settings.
func (c *Config) Validate() error {
	var errs []error

	switch t := get(c.Graph.Type, TYPE_MEMORY); t {
	case TYPE_MEMORY:
	case TYPE_FILESYSTEM, TYPE_SQLITE:
		if get(c.Graph.Path, "") == "" {
			errs = append(errs, fmt.Errorf("graph type %q requires a path", t))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid graph type %q", t))
	}

	switch t := get(c.Bucket.Type, TYPE_MEMORY); t {
	case TYPE_MEMORY:
	case TYPE_FILESYSTEM:
		if get(c.Bucket.Path, "") == "" {
			errs = append(errs, fmt.Errorf("bucket type %q requires a path", t))
		}
	case TYPE_REDIS:
		if get(c.Bucket.Address, "") == "" {
			errs = append(errs, fmt.Errorf("bucket type %q requires an address", t))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid bucket type %q", t))
	}

	if c.Workers != nil && *c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("number of workers must be positive"))
	}
	if c.LogLevel != nil {
		if _, err := logging.ParseLevel(strings.ToLower(*c.LogLevel)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func get[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
