package translator

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed engine_override.schema.json
var overrideSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

func loadOverrideSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("engine_override.schema.json", strings.NewReader(overrideSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile("engine_override.schema.json")
		if compiledSchemaErr != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", compiledSchemaErr)
		}
	})
	return compiledSchema, compiledSchemaErr
}

// ValidateOverride decodes and validates a persisted engine override. Keys
// are snake_case config names; numbers and flags may be given as strings.
func ValidateOverride(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode override JSON: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("override contains trailing content")
	}

	schema, err := loadOverrideSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("override validation failed: %w", err)
	}

	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("override must be a JSON object")
	}
	return m, nil
}

// applyOverride merges validated override values into cfg.
func applyOverride(cfg *Config, m map[string]any) error {
	for key, v := range m {
		if v == nil {
			continue
		}
		var err error
		switch key {
		case "api_url":
			cfg.APIURL = fmt.Sprint(v)
		case "api_key":
			cfg.APIKey = fmt.Sprint(v)
		case "app_id":
			cfg.AppID = fmt.Sprint(v)
		case "app_secret":
			cfg.AppSecret = fmt.Sprint(v)
		case "credentials_file":
			cfg.CredentialsFile = fmt.Sprint(v)
		case "model":
			cfg.Model = fmt.Sprint(v)
		case "max_workers":
			cfg.MaxWorkers, err = toInt(v)
		case "batch_size":
			cfg.BatchSize, err = toInt(v)
		case "json_batch_size":
			cfg.JSONBatchSize, err = toInt(v)
		case "max_batch_chars":
			cfg.MaxBatchChars, err = toInt(v)
		case "retry_max":
			cfg.RetryMax, err = toInt(v)
		case "timeout":
			cfg.Timeout, err = toSeconds(v)
		case "request_delay":
			cfg.RequestDelay, err = toSeconds(v)
		case "temperature":
			cfg.Temperature, err = toFloat(v)
		case "max_tokens":
			cfg.MaxTokens, err = toInt(v)
		case "sequential":
			cfg.Sequential, err = toBool(v)
		case "use_json_format":
			cfg.JSONMode, err = toBool(v)
		case "join_single_overflow":
			cfg.JoinSingleOverflow, err = toBool(v)
		default:
			return fmt.Errorf("unknown override key %q", key)
		}
		if err != nil {
			return fmt.Errorf("override %s: %w", key, err)
		}
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func toInt(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func toSeconds(v any) (time.Duration, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("not a flag: %v", v)
}
