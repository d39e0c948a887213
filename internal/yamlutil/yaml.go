// Package yamlutil decodes the YAML documents this site carries: the
// server config file and the assistant preamble data. It isolates the
// YAML dependency so callers never import the library directly.
package yamlutil

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// MaxDocumentSize caps YAML input. Config and preamble files are a few
// kilobytes; anything near the cap is a mistake, not data.
const MaxDocumentSize = 1 << 20

var (
	ErrEmptyDocument    = errors.New("yaml document is empty")
	ErrNilTarget        = errors.New("yaml decode target is nil")
	ErrDocumentTooLarge = errors.New("yaml document exceeds size limit")
)

func validateDocument(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmptyDocument
	}
	if len(data) > MaxDocumentSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrDocumentTooLarge, len(data), MaxDocumentSize)
	}
	if v == nil {
		return ErrNilTarget
	}
	return nil
}

// Decode parses a YAML document into v, tolerating unknown fields. Used
// for the free-form preamble data whose shape the assistant does not pin.
func Decode(data []byte, v any) error {
	if err := validateDocument(data, v); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding yaml: %w", err)
	}
	return nil
}

// DecodeStrict parses a YAML document into v, rejecting unknown fields.
// Used for the config file, where a typoed key should fail loudly.
func DecodeStrict(data []byte, v any) error {
	if err := validateDocument(data, v); err != nil {
		return err
	}
	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return fmt.Errorf("decoding yaml: %w", err)
	}
	return nil
}

// DecodeFile reads path and decodes its contents into v.
func DecodeFile(path string, v any) error {
	data, err := os.ReadFile(path) // #nosec G304 -- paths come from config
	if err != nil {
		return fmt.Errorf("reading yaml file: %w", err)
	}
	return Decode(data, v)
}
