package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hupe1980/vdisk"
	"github.com/hupe1980/vdisk/blobstore"
	"github.com/hupe1980/vdisk/blobstore/minio"
	"github.com/hupe1980/vdisk/blobstore/s3"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "VDISK"
	appName      = "vdisk"
)

// Config is the CLI configuration. Values come from the YAML file first,
// then from VDISK_* environment variables, then from flags.
type Config struct {
	Image        string      `envconfig:"VDISK_IMAGE"         yaml:"image"`
	ClusterSize  int         `envconfig:"VDISK_CLUSTER_SIZE"  yaml:"clusterSize"`
	ClusterCount int         `envconfig:"VDISK_CLUSTER_COUNT" yaml:"clusterCount"`
	Label        string      `envconfig:"VDISK_LABEL"         yaml:"label"`
	Device       string      `envconfig:"VDISK_DEVICE"        yaml:"device"`
	AutoSave     bool        `envconfig:"VDISK_AUTO_SAVE"     yaml:"autoSave"`
	IOLimit      int64       `envconfig:"VDISK_IO_LIMIT"      yaml:"ioLimit"`
	LogLevel     string      `envconfig:"VDISK_LOG_LEVEL"     yaml:"logLevel"`
	LogFormat    string      `envconfig:"VDISK_LOG_FORMAT"    yaml:"logFormat"`
	Compression  string      `envconfig:"VDISK_COMPRESSION"   yaml:"compression"`
	Store        StoreConfig `yaml:"store"`
}

// StoreConfig selects the blob store that holds snapshots.
type StoreConfig struct {
	Kind         string `envconfig:"VDISK_STORE"               yaml:"kind"`
	Dir          string `envconfig:"VDISK_STORE_DIR"           yaml:"dir"`
	Bucket       string `envconfig:"VDISK_STORE_BUCKET"        yaml:"bucket"`
	Prefix       string `envconfig:"VDISK_STORE_PREFIX"        yaml:"prefix"`
	Region       string `envconfig:"VDISK_STORE_REGION"        yaml:"region"`
	Endpoint     string `envconfig:"VDISK_STORE_ENDPOINT"      yaml:"endpoint"`
	AccessKey    string `envconfig:"VDISK_STORE_ACCESS_KEY"    yaml:"accessKey"`
	SecretKey    string `envconfig:"VDISK_STORE_SECRET_KEY"    yaml:"secretKey"`
	Secure       bool   `envconfig:"VDISK_STORE_SECURE"        yaml:"secure"`
	CreateBucket bool   `envconfig:"VDISK_STORE_CREATE_BUCKET" yaml:"createBucket"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Image:       "VirtualDisk.bin",
		Device:      string(vdisk.DeviceFile),
		LogLevel:    "warn",
		LogFormat:   "text",
		Compression: "zstd",
		Store: StoreConfig{
			Kind: "local",
			Dir:  "snapshots",
		},
	}
}

// LoadConfig reads path, or VDISK_CONFIG_FILE, or ~/.config/vdisk.yaml when
// both are empty, and applies the environment on top. A missing file is not
// an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(envVarPrefix + "_CONFIG_FILE")
	}
	explicit := path != ""
	if !explicit {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".config", appName+".yaml")
		}
	}

	c := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.UnmarshalStrict(data, &c); err != nil {
				return nil, fmt.Errorf("unmarshaling config file: %w", err)
			}
		case !os.IsNotExist(err) || explicit:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Image == "" {
		return missing("image", "IMAGE")
	}
	if (c.ClusterSize == 0) != (c.ClusterCount == 0) {
		return fmt.Errorf("clusterSize and clusterCount must be set together")
	}
	if c.ClusterSize != 0 {
		if err := c.Geometry().Validate(); err != nil {
			return err
		}
	}
	if _, err := vdisk.ParseDeviceKind(c.Device); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if _, err := vdisk.ParseCompression(c.Compression); err != nil {
		return err
	}

	switch c.Store.Kind {
	case "local", "":
		if c.Store.Dir == "" {
			return missing("store.dir", "STORE_DIR")
		}
	case "s3":
		if c.Store.Bucket == "" {
			return missing("store.bucket", "STORE_BUCKET")
		}
	case "minio":
		if c.Store.Endpoint == "" {
			return missing("store.endpoint", "STORE_ENDPOINT")
		}
		if c.Store.Bucket == "" {
			return missing("store.bucket", "STORE_BUCKET")
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	return nil
}

func missing(yamlName, envName string) error {
	return fmt.Errorf("missing required configuration: %s / %s_%s", yamlName, envVarPrefix, envName)
}

// Geometry returns the configured geometry or the default one.
func (c *Config) Geometry() vdisk.Geometry {
	if c.ClusterSize == 0 {
		return vdisk.DefaultGeometry()
	}
	return vdisk.Geometry{ClusterSize: c.ClusterSize, ClusterCount: c.ClusterCount}
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// Logger builds the logger selected by LogLevel and LogFormat.
func (c *Config) Logger() *vdisk.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelWarn
	}
	if c.LogFormat == "json" {
		return vdisk.NewJSONLogger(level)
	}
	return vdisk.NewTextLogger(level)
}

// Options converts the volume settings into Open options.
func (c *Config) Options() ([]vdisk.Option, error) {
	kind, err := vdisk.ParseDeviceKind(c.Device)
	if err != nil {
		return nil, err
	}
	opts := []vdisk.Option{
		vdisk.WithGeometry(c.Geometry()),
		vdisk.WithDeviceKind(kind),
		vdisk.WithAutoSave(c.AutoSave),
		vdisk.WithLogger(c.Logger()),
	}
	if c.Label != "" {
		opts = append(opts, vdisk.WithLabel(c.Label))
	}
	if c.IOLimit > 0 {
		opts = append(opts, vdisk.WithIOLimit(c.IOLimit))
	}
	return opts, nil
}

// OpenStore connects to the configured snapshot store.
func (c *Config) OpenStore(ctx context.Context) (blobstore.BlobStore, error) {
	sc := c.Store
	switch sc.Kind {
	case "s3":
		opts := []s3.Option{s3.WithPrefix(sc.Prefix)}
		if sc.Region != "" {
			opts = append(opts, s3.WithRegion(sc.Region))
		}
		if sc.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(sc.Endpoint))
		}
		return s3.New(ctx, sc.Bucket, opts...)
	case "minio":
		return minio.Dial(ctx, minio.Config{
			Endpoint:     sc.Endpoint,
			AccessKey:    sc.AccessKey,
			SecretKey:    sc.SecretKey,
			Region:       sc.Region,
			Secure:       sc.Secure,
			Bucket:       sc.Bucket,
			Prefix:       sc.Prefix,
			CreateBucket: sc.CreateBucket,
		})
	default:
		if err := os.MkdirAll(sc.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		return blobstore.NewLocalStore(sc.Dir), nil
	}
}
