// Package assets embeds the static stylesheets the backend serves, most
// notably the print stylesheet injected into exported PDF documents.
package assets

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Sentinel errors for asset lookups.
var (
	ErrInvalidAssetName = errors.New("invalid asset name")
	ErrStyleNotFound    = errors.New("style not found")
)

//go:embed styles/*.css
var styles embed.FS

// ValidateAssetName checks that an asset name is safe for use as a
// filename: no path separators, dots, or traversal characters.
func ValidateAssetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAssetName)
	}
	if strings.ContainsAny(name, "/\\.") {
		return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	return nil
}

// Stylesheet returns the embedded CSS with the given name. The name does
// not include the .css extension.
func Stylesheet(name string) ([]byte, error) {
	if err := ValidateAssetName(name); err != nil {
		return nil, err
	}
	content, err := styles.ReadFile("styles/" + name + ".css")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrStyleNotFound, name)
	}
	return content, nil
}

// StylesheetNames lists the embedded stylesheets, sorted, without the
// .css extension.
func StylesheetNames() []string {
	entries, err := fs.ReadDir(styles, "styles")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".css"))
	}
	sort.Strings(names)
	return names
}
