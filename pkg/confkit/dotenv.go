package confkit

import (
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce reads .env files into the process environment once.
//
//	NO_DOTENV=1        skip entirely
//	ENV_FILE=path      load only that file
//	DOTENV_OVERLOAD=1  let .env values replace variables already set
//
// Without ENV_FILE every .env between the working directory and the project
// root is loaded, nearest first, so a nested .env takes precedence.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	overload := os.Getenv("DOTENV_OVERLOAD") == "1"
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if overload {
			_ = godotenv.Overload(envFile)
		} else {
			_ = godotenv.Load(envFile)
		}
		return
	}
	paths := dotenvCandidates()
	if len(paths) == 0 {
		return
	}
	if overload {
		// Overload lets the last file win, so feed the nearest one last.
		slices.Reverse(paths)
		_ = godotenv.Overload(paths...)
		return
	}
	_ = godotenv.Load(paths...)
}

func dotenvCandidates() []string {
	wd, err := os.Getwd()
	if err != nil {
		return nil
	}
	var out []string
	dir := wd
	for i := 0; i < maxRootDepth; i++ {
		if p := filepath.Join(dir, ".env"); exists(p) {
			out = append(out, p)
		}
		if isRoot(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return out
}
