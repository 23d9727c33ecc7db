package photofs

import "github.com/moses-palmer/photofs/log"

type Options struct {
	// Filters are the category views partitioning the tree. With no
	// filters the root tags populate the top level directly.
	Filters []Filter

	// Links presents media as symbolic links to the backing files
	// instead of regular files.
	Links bool

	// Logger receives diagnostics.
	Logger *log.Logger
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	return &Options{
		Logger: log.Discard(),
	}
}

// WithFilters configures the named category views, in listing order.
func WithFilters(filters ...Filter) Option {
	return func(opts *Options) error {
		opts.Filters = append(opts.Filters, filters...)
		return nil
	}
}

// WithLinks presents media as symbolic links.
func WithLinks() Option {
	return func(opts *Options) error {
		opts.Links = true
		return nil
	}
}

// WithLogger routes diagnostics to the given logger.
func WithLogger(logger *log.Logger) Option {
	return func(opts *Options) error {
		opts.Logger = logger
		return nil
	}
}
