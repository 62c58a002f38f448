// Package config resolves run options from command-line flags, CRAFT_*
// environment variables and .env files, and builds the run's logger.
package config
