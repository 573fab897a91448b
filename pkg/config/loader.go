package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var (
	defaultEnvLoaded sync.Once
	validate         = validator.New(validator.WithRequiredStructEnabled())
)

type loadOptions struct {
	files       []string
	prefix      string
	environment map[string]string
}

// Option customises a single Load call.
type Option func(*loadOptions)

// WithEnvFiles loads the given dotenv files instead of the default ".env".
// Variables already present in the process environment win.
func WithEnvFiles(files ...string) Option {
	return func(o *loadOptions) { o.files = append(o.files, files...) }
}

// WithPrefix prepends prefix to every env tag, e.g. "SAASCORE_".
func WithPrefix(prefix string) Option {
	return func(o *loadOptions) { o.prefix = prefix }
}

// WithEnvironment parses from the given map instead of the process environment.
func WithEnvironment(vars map[string]string) Option {
	return func(o *loadOptions) { o.environment = vars }
}

// Load parses environment variables into v using `env` struct tags and then
// runs `validate` struct tags over the result.
//
//	type AppConfig struct {
//		HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`
//		Driver   string `env:"REALTIME_DRIVER" envDefault:"memory" validate:"oneof=memory redis"`
//	}
//
//	var cfg AppConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if len(o.files) > 0 {
		// Missing files are not an error: deployments usually rely on real env vars.
		_ = godotenv.Load(o.files...)
	} else {
		defaultEnvLoaded.Do(func() { _ = godotenv.Load() })
	}

	envOpts := env.Options{Prefix: o.prefix}
	if o.environment != nil {
		envOpts.Environment = o.environment
	}
	if err := env.ParseWithOptions(v, envOpts); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	if reflect.Indirect(reflect.ValueOf(v)).Kind() == reflect.Struct {
		if err := validate.Struct(v); err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
	}

	return nil
}

// MustLoad works like Load but panics on failure. Use it in main only.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
