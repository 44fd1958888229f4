package configuration

import (
	"fmt"
	"os"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		panic(err)
	}
	return c
})

// Use returns the process-wide configuration, loading it on first call.
func Use() *Configuration {
	return singleton()
}

// LoadEnv loads the env files that exist and reports how many were found.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}
	if len(existingFiles) == 0 {
		return 0, nil
	}
	return len(existingFiles), godotenv.Load(existingFiles...)
}

type Configuration struct {
	// SchemaDir holds one JSON schema definition file per entity type.
	SchemaDir string `env:"MFDATA_SCHEMA_DIR" envDefault:"./schemas"`
	// InventoryDir holds the per-schema record snapshots imports reconcile against.
	InventoryDir string `env:"MFDATA_INVENTORY_DIR" envDefault:"./inventory"`
	// ManifestDir is where applied import runs write their manifests.
	ManifestDir string `env:"MFDATA_MANIFEST_DIR" envDefault:"./manifests"`

	MaxRows int `env:"MFDATA_MAX_ROWS" envDefault:"50000"`

	LogLevel  string `env:"MFDATA_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"MFDATA_LOG_FORMAT" envDefault:"text"`
}

func (c *Configuration) load(envFiles []string) error {
	if _, err := LoadEnv(envFiles); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if c.MaxRows <= 0 {
		return fmt.Errorf("MFDATA_MAX_ROWS must be positive, got %d", c.MaxRows)
	}
	return nil
}
