package styling

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"gopkg.in/yaml.v3"
)

// ParseStyle reads a YAML style definition. Example:
//
//	id: bold
//	lineWidths:
//	  motorway: 8
//	  residential: 3
func ParseStyle(reader io.Reader) (*Style, errorsx.Error) {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	style := new(Style)
	err := decoder.Decode(style)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	err = style.Validate()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return style, nil
}

func LoadStyleFile(filePath string) (*Style, errorsx.Error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer file.Close()

	style, err := ParseStyle(file)
	if err != nil {
		return nil, errorsx.Wrap(err, "filePath", filePath)
	}

	return style, nil
}

func isStyleFile(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	return ext == ".yaml" || ext == ".yml"
}

// LoadStylesFromDir loads every YAML style in the directory, alongside the builtin style.
// Files that can't be loaded are logged and skipped.
func LoadStylesFromDir(logger *logpkg.Logger, dir string, defaultStyleID string) (*StyleSet, errorsx.Error) {
	styles := []*Style{BuiltinStyle()}

	if dir != "" {
		dirEntries, err := os.ReadDir(dir)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		for _, dirEntry := range dirEntries {
			if dirEntry.IsDir() || !isStyleFile(dirEntry.Name()) {
				continue
			}

			filePath := filepath.Join(dir, dirEntry.Name())
			style, err := LoadStyleFile(filePath)
			if err != nil {
				logger.Error("error loading style from %q. Error: %q", filePath, err)
				continue
			}

			styles = append(styles, style)
		}
	}

	sort.Slice(styles, func(a, b int) bool {
		return styles[a].GetStyleID() < styles[b].GetStyleID()
	})

	styleSet, err := NewStyleSet(styles, defaultStyleID)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return styleSet, nil
}
