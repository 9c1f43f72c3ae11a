package workoutsvc

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/mkrupp/gymtracker/internal/domain"
)

//go:embed themes.toml
var builtinThemes []byte

var ErrInvalidThemeTable = errors.New("invalid theme table")

// ThemeTable is the ordered set of themes the UI can choose from.
type ThemeTable struct {
	Default string         `toml:"default"`
	Themes  []domain.Theme `toml:"themes"`
}

// BuiltinThemes returns the theme table compiled into the binary.
func BuiltinThemes() (*ThemeTable, error) {
	return LoadThemes(bytes.NewReader(builtinThemes))
}

// LoadThemesFile reads a theme table from a TOML file.
func LoadThemesFile(path string) (*ThemeTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open themes file: %w", err)
	}
	defer file.Close()

	return LoadThemes(file)
}

// LoadThemes decodes and validates a TOML theme table. Keys must be unique
// and the default must name one of the themes.
func LoadThemes(r io.Reader) (*ThemeTable, error) {
	var table ThemeTable

	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&table); err != nil {
		return nil, fmt.Errorf("decode themes: %w", err)
	}

	if len(table.Themes) == 0 {
		return nil, fmt.Errorf("%w: no themes", ErrInvalidThemeTable)
	}

	seen := make(map[string]struct{}, len(table.Themes))

	for i := range table.Themes {
		key := strings.TrimSpace(table.Themes[i].Key)
		if key == "" {
			return nil, fmt.Errorf("%w: theme #%d has no key", ErrInvalidThemeTable, i+1)
		}

		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidThemeTable, key)
		}

		seen[key] = struct{}{}
		table.Themes[i].Key = key
	}

	if table.Default == "" {
		table.Default = table.Themes[0].Key
	}

	if _, ok := table.Lookup(table.Default); !ok {
		return nil, fmt.Errorf("%w: default %q is not a theme", ErrInvalidThemeTable, table.Default)
	}

	return &table, nil
}

// Lookup returns the theme with the given key.
func (t *ThemeTable) Lookup(key string) (domain.Theme, bool) {
	for _, theme := range t.Themes {
		if theme.Key == key {
			return theme, true
		}
	}

	return domain.Theme{}, false
}

// DefaultTheme returns the theme used when none was chosen.
func (t *ThemeTable) DefaultTheme() domain.Theme {
	theme, _ := t.Lookup(t.Default)

	return theme
}

// All returns a copy of the themes in table order.
func (t *ThemeTable) All() []domain.Theme {
	return append([]domain.Theme(nil), t.Themes...)
}
