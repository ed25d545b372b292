package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Models      ModelConfig               `json:"models"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ModelConfig overrides the default Gemini model ids per operation.
// Empty fields keep the built-in defaults.
type ModelConfig struct {
	Chat      string `json:"chat"`
	Reasoning string `json:"reasoning"`
	Lite      string `json:"lite"`
	Image     string `json:"image"`
	ImageEdit string `json:"image_edit"`
	Video     string `json:"video"`
	Speech    string `json:"speech"`
	Live      string `json:"live"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{ServerAddress: ":8090"},
		Databases: map[string]DatabaseConfig{
			"sqlite3": {DSN: "data/myrockai.db"},
		},
	}
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file at the default path yields Default(); an explicitly named
// path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.BasicConfig.ServerAddress == "" {
		cfg.BasicConfig.ServerAddress = ":8090"
	}
	if len(cfg.Databases) == 0 {
		cfg.Databases = Default().Databases
	}
	for name, db := range cfg.Databases {
		if name == "sqlite3" && db.DSN != "" && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}
	return &cfg, nil
}
