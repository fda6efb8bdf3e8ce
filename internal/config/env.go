package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVar names an explicit .env file that wins over the --env flag.
const EnvFileVar = "DOCTRAN_ENV_FILE"

// LoadEnvFile loads environment variables from a .env file, overriding
// values already present in the process environment. The lookup order is
// $DOCTRAN_ENV_FILE, then requested, then the basename of requested.
// A missing file is not an error when nothing was asked for explicitly;
// the returned path is empty in that case.
func LoadEnvFile(requested string) (string, error) {
	if custom := strings.TrimSpace(os.Getenv(EnvFileVar)); custom != "" {
		if err := godotenv.Overload(custom); err != nil {
			return "", fmt.Errorf("load %s=%s: %w", EnvFileVar, custom, err)
		}
		return custom, nil
	}

	explicit := strings.TrimSpace(requested) != ""
	if !explicit {
		requested = ".env"
	}

	if err := godotenv.Overload(requested); err == nil {
		return requested, nil
	}

	base := filepath.Base(requested)
	if base != "" && base != requested {
		if err := godotenv.Overload(base); err == nil {
			return base, nil
		}
	}

	if explicit {
		return "", fmt.Errorf("failed to load env file from %s", requested)
	}
	return "", nil
}
