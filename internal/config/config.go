// Package config loads the optional formdex.hcl file. Flags always override
// whatever the file says.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/formdex/internal/extract"
)

// Config is the file-level configuration.
type Config struct {
	Database        string `hcl:"database,optional"`
	DataDir         string `hcl:"data_dir,optional"`
	Game            string `hcl:"game,optional"`
	RecordBatchSize int    `hcl:"record_batch_size,optional"`
	TextBatchSize   int    `hcl:"text_batch_size,optional"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Database:        "formdex.db",
		RecordBatchSize: extract.DefaultRecordBatchSize,
		TextBatchSize:   extract.DefaultTextBatchSize,
	}
}

// Load reads path, if it exists, on top of the defaults. A missing file is
// not an error unless the path was explicitly requested.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	var file Config
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if file.Database != "" {
		cfg.Database = file.Database
	}
	if file.DataDir != "" {
		cfg.DataDir = file.DataDir
	}
	if file.Game != "" {
		cfg.Game = file.Game
	}
	if file.RecordBatchSize > 0 {
		cfg.RecordBatchSize = file.RecordBatchSize
	}
	if file.TextBatchSize > 0 {
		cfg.TextBatchSize = file.TextBatchSize
	}
	return cfg, nil
}
