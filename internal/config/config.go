// Package config loads experiment definitions from JSON, YAML or HCL files
// and validates them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agentic-research/impactree/api"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding file settings.
const (
	EnvLogLevel = "IMPACTREE_LOG_LEVEL"
	EnvWorkers  = "IMPACTREE_WORKERS"
)

// DefaultLogLevel applies when neither the file nor the environment set one.
const DefaultLogLevel = "info"

// ErrUnsupportedFormat is returned for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported experiment format")

var validate = validator.New()

// ValidationError lists every problem found in an experiment.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid experiment: " + strings.Join(e.Problems, "; ")
}

// Load reads the experiment at path, applies environment overrides and
// validates the result. The format follows the extension: .json, .yaml,
// .yml or .hcl.
func Load(path string) (*api.Experiment, error) {
	exp, err := decode(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(exp); err != nil {
		return nil, err
	}
	if exp.LogLevel == "" {
		exp.LogLevel = DefaultLogLevel
	}
	if exp.Results != "" && !filepath.IsAbs(exp.Results) {
		exp.Results = filepath.Join(filepath.Dir(path), exp.Results)
	}
	if err := Validate(exp); err != nil {
		return nil, err
	}
	return exp, nil
}

func decode(path string) (*api.Experiment, error) {
	exp := &api.Experiment{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		if err := hclsimple.DecodeFile(path, nil, exp); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return exp, nil
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, exp)
	} else {
		err = yaml.Unmarshal(data, exp)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return exp, nil
}

func applyEnv(exp *api.Experiment) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		exp.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		exp.Workers = n
	}
	return nil
}

// Validate checks field constraints on exp.
func Validate(exp *api.Experiment) error {
	err := validate.Struct(exp)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return &ValidationError{Problems: problems}
}
