package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	configPath string
	workDir    string
	regenerate bool
	watch      bool
	out        io.Writer
	getenv     func(string) string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfigPath sets the configuration file whose changes invalidate the caches.
// An empty path disables the check.
func WithConfigPath(path string) Option {
	return func(a *application) {
		a.configPath = path
	}
}

// WithWorkDir sets the directory searched for pack roots.
func WithWorkDir(dir string) Option {
	return func(a *application) {
		a.workDir = dir
	}
}

// WithRegenerate discards persisted state before linting.
func WithRegenerate(v bool) Option {
	return func(a *application) {
		a.regenerate = v
	}
}

// WithWatch keeps linting on every change until the context ends.
func WithWatch(v bool) Option {
	return func(a *application) {
		a.watch = v
	}
}

// WithOutput sets where the report is written.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithGetenv replaces the environment lookup used for CI detection.
func WithGetenv(fn func(string) string) Option {
	return func(a *application) {
		a.getenv = fn
	}
}
