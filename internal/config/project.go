package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Project describes one import job: which container to fill, from which
// document, which pages, and where the result is written.
//
//	container   = "definitions"
//	document_id = "1AbC..."
//	pages       = ["Items", "Units"]
//
//	[output]
//	path      = "../../Configs"
//	file_name = "Configs.v0.1"
//	format    = "json"
type Project struct {
	Container  string        `toml:"container"`
	DocumentID string        `toml:"document_id"`
	Pages      []string      `toml:"pages"`
	All        bool          `toml:"all"`
	Output     ProjectOutput `toml:"output"`
}

// ProjectOutput overrides the environment's output settings for one project.
type ProjectOutput struct {
	Path     string `toml:"path"`
	FileName string `toml:"file_name"`
	Format   string `toml:"format"`
}

// LoadProject reads and validates a TOML project file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}

	var p Project
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing project file %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("project file %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks the fields a project must carry. The document id is not
// checked here; the importer reports it as a setup error.
func (p *Project) Validate() error {
	var errs []string
	if strings.TrimSpace(p.Container) == "" {
		errs = append(errs, "container is required")
	}
	if p.All && len(p.Pages) > 0 {
		errs = append(errs, "pages and all are mutually exclusive")
	}
	if f := strings.ToLower(p.Output.Format); f != "" && f != "json" && f != "binary" {
		errs = append(errs, fmt.Sprintf("output.format (%q) must be one of: json, binary", p.Output.Format))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// OutputWith returns the project's output settings, filling unset values
// from the environment defaults.
func (p *Project) OutputWith(defaults OutputConfig) OutputConfig {
	out := defaults
	if p.Output.Path != "" {
		out.Path = p.Output.Path
	}
	if p.Output.FileName != "" {
		out.FileName = p.Output.FileName
	}
	if p.Output.Format != "" {
		out.Format = strings.ToLower(p.Output.Format)
	}
	return out
}
