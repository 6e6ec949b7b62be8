package roadposterdal

import (
	"os"
	"path/filepath"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/userextra"
)

const DefaultRootDir = "~/.local/share/github.com/jamesrr39/roadposter/"

type PathsConfig struct {
	StylesDir string
	TraceDir  string
}

// NewPathsConfig lays out the application directories under rootDir. A leading "~" is expanded to the user's home directory.
func NewPathsConfig(rootDir string) (*PathsConfig, errorsx.Error) {
	expandedRootDir, err := userextra.ExpandUser(rootDir)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return &PathsConfig{
		StylesDir: filepath.Join(expandedRootDir, "styles"),
		TraceDir:  filepath.Join(expandedRootDir, "trace"),
	}, nil
}

func (pc *PathsConfig) EnsurePaths() errorsx.Error {
	for _, dirPath := range []string{pc.StylesDir, pc.TraceDir} {
		err := os.MkdirAll(dirPath, 0755)
		if err != nil {
			return errorsx.Wrap(err)
		}
	}

	return nil
}
