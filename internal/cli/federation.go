package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goldenagents/gafed/internal/expertise"
	"github.com/goldenagents/gafed/internal/fedspec"
)

// loadFederation loads a federation from a CUE file or a CUE package
// directory and builds its expertise graph. Failures are reported through
// formatter.
func loadFederation(formatter *OutputFormatter, path string, logger *slog.Logger) (*fedspec.Federation, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("federation not found: %s", path), nil)
	}

	var spec *fedspec.Spec
	if info.IsDir() {
		spec, err = fedspec.LoadDir(path)
	} else {
		spec, err = fedspec.LoadFile(path)
	}
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid federation", err)
	}
	formatter.VerboseLog("Loaded federation with %d source(s) from %s", len(spec.Sources), path)

	fed, err := spec.Build(expertise.WithLogger(logger))
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeInvalidInput, "federation expertise rejected", err)
	}
	return fed, nil
}
