package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
pipeline:
  template_workbook: templates/main_carriageway.xlsx
  start_row: 7
logger:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logger.Level)

	// defaults fill anything the file leaves out
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "Quantity", cfg.Pipeline.SheetName)
	assert.Equal(t, "C", cfg.Pipeline.ReferenceColumn)
	assert.Equal(t, "quantity_main", cfg.Pipeline.MainTemplate)
	assert.Equal(t, "final_sum", cfg.Pipeline.FinalSumTemplate)
	assert.Equal(t, 16, cfg.Worker.QueueSize)
	assert.Equal(t, 5*time.Minute, cfg.Worker.JobTimeout)
	assert.Equal(t, "migrations", cfg.Database.MigrationsDir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Path: "data/boq.db"},
			Storage:  StorageConfig{SessionsDir: "sessions"},
			Pipeline: PipelineConfig{
				TemplateWorkbook: "templates/main_carriageway.xlsx",
				TemplatesDir:     "configs/templates",
				MainTemplate:     "quantity_main",
				FinalSumTemplate: "final_sum",
				SheetName:        "Quantity",
				StartRow:         7,
				ReferenceColumn:  "C",
			},
		}
	}

	assert.NoError(t, valid().Validate())

	t.Run("bad port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 0
		assert.ErrorContains(t, cfg.Validate(), "server.port")
	})

	t.Run("missing template workbook", func(t *testing.T) {
		cfg := valid()
		cfg.Pipeline.TemplateWorkbook = ""
		assert.ErrorContains(t, cfg.Validate(), "template_workbook")
	})

	t.Run("start row under the header block", func(t *testing.T) {
		cfg := valid()
		cfg.Pipeline.StartRow = 1
		assert.ErrorContains(t, cfg.Validate(), "start_row")
	})
}
