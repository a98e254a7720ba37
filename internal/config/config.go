package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config son los ajustes que no cambian en cada invocación. Los flags de
// la línea de comandos tienen prioridad.
type Config struct {
	Env     string   `yaml:"env" env:"DEDUP_ENV" env-default:"local"`
	Workers int      `yaml:"workers" env:"DEDUP_WORKERS" env-default:"0"`
	Markers []string `yaml:"markers" env:"DEDUP_MARKERS" env-separator:"," env-default:".DS_Store,Thumbs.db,desktop.ini"`
	CacheDB string   `yaml:"cache_db" env:"DEDUP_CACHE_DB"`
}

var ErrUnknownEnv = errors.New("entorno desconocido")

// Load lee configPath (YAML) si no está vacío y luego el entorno.
// Priority: flag > env > default.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if configPath != "" {
		// check if file exists
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("archivo de configuración %s: %w", configPath, err)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("no se pudo leer la configuración: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("no se pudo leer el entorno: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEnv, c.Env)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers no puede ser negativo: %d", c.Workers)
	}
	return nil
}
