package main

import (
	"fmt"

	"github.com/AmmannChristian/go-casdoorauth/config"
	"github.com/AmmannChristian/go-casdoorauth/oidcconfig"
)

// loadStack merges the built-in defaults, the optional YAML file and the
// environment, then layers the derived OIDC properties on top.
func loadStack(configFile string, environ []string) (*config.Stack, error) {
	sources := []config.Source{
		config.DefaultsSource(),
		config.NewEnvSource(environ),
	}

	if configFile != "" {
		file, err := config.LoadYAMLSource(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		sources = append(sources, file)
	}

	stack := config.NewStack(sources...)
	return stack.With(oidcconfig.NewSource(stack)), nil
}

// loadResolver builds the validated configuration from stack.
func loadResolver(stack *config.Stack, logger config.Logger) (*config.Resolver, error) {
	cfg, err := config.FromLookup(stack)
	if err != nil {
		return nil, err
	}

	resolver, err := config.NewResolver(cfg, config.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return resolver, nil
}
