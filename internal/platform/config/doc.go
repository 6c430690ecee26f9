// Package config loads broker configuration from the environment.
//
// A .env file is honored in development via godotenv; real deployments set
// the variables directly. Validation fails fast on a missing JWT secret or
// nonsensical heartbeat tuning.
package config
