// Package config loads typed configuration from the environment.
//
// Values are read with github.com/caarlos0/env/v11 from `env` tags, an optional
// `.env` file is merged first through github.com/joho/godotenv, and the result
// is checked against `validate` tags with go-playground/validator. Every
// component package (pg, redis, the serve command) declares its own struct
// and loads it through Load.
package config
