package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads environment variables from .env/.env.local if present.
// Existing process environment always wins; a missing file is not an error.
func loadEnvFiles() {
	for _, path := range []string{".env", ".env.local"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "Note: %s could not be loaded: %v\n", path, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", path)
		return
	}
}
