package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. BLOODSYNC_DATABASE_URL
// overrides database.url.
const EnvPrefix = "BLOODSYNC"

// ErrMissingType is returned by NewViperFromBytes when no format is given.
var ErrMissingType = errors.New("config: config type is required")

// Viper implements Config on top of spf13/viper.
type Viper struct {
	v *viper.Viper
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// NewViper reads the file at pathFile and reloads it whenever it changes on disk.
func NewViper(pathFile string) (*Viper, error) {
	v := newViper()

	base := filepath.Base(pathFile)
	v.AddConfigPath(filepath.Dir(pathFile))
	v.SetConfigName(strings.TrimSuffix(base, filepath.Ext(base)))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			slog.Error("failed to reload config", "path", e.Name, "error", err)
			return
		}
		slog.Info("config reloaded", "path", e.Name, "op", e.Op.String())
	})
	v.WatchConfig()

	return &Viper{v: v}, nil
}

// NewViperFromBytes parses an in-memory document of the given format ("yaml", "json", ...).
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, ErrMissingType
	}

	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

func (c *Viper) GetInt(key string) int         { return c.v.GetInt(key) }
func (c *Viper) GetInt32(key string) int32     { return c.v.GetInt32(key) }
func (c *Viper) GetInt64(key string) int64     { return c.v.GetInt64(key) }
func (c *Viper) GetUint(key string) uint       { return c.v.GetUint(key) }
func (c *Viper) GetUint16(key string) uint16   { return c.v.GetUint16(key) }
func (c *Viper) GetFloat64(key string) float64 { return c.v.GetFloat64(key) }
func (c *Viper) GetBool(key string) bool       { return c.v.GetBool(key) }
func (c *Viper) GetString(key string) string   { return c.v.GetString(key) }

func (c *Viper) GetSecond(key string) time.Duration { return c.unit(key, time.Second) }
func (c *Viper) GetMinute(key string) time.Duration { return c.unit(key, time.Minute) }
func (c *Viper) GetHour(key string) time.Duration   { return c.unit(key, time.Hour) }

func (c *Viper) unit(key string, d time.Duration) time.Duration {
	return time.Duration(c.v.GetInt64(key)) * d
}

func (c *Viper) GetBinary(key string) []byte {
	data, err := base64.StdEncoding.DecodeString(c.v.GetString(key))
	if err != nil {
		return nil
	}

	return data
}

func (c *Viper) GetArray(key string) []string {
	raw := c.v.GetString(key)
	if raw == "" {
		return nil
	}

	out := make([]string, 0, strings.Count(raw, ",")+1)
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

func (c *Viper) GetMap(key string) map[string]string {
	out := make(map[string]string)
	for _, item := range c.GetArray(key) {
		k, v, ok := strings.Cut(item, ":")
		if ok {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	return out
}

// Close is a no-op; viper holds no resources worth releasing.
func (*Viper) Close() error {
	return nil
}
