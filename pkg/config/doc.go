// Package config provides configuration loading and validation for the
// CodeCraft service.
//
// Configuration is read from a YAML file, merged with defaults, optionally
// overridden by environment variables, and validated before use:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Environment variables follow the naming convention CODECRAFT_SECTION_FIELD
// (for example CODECRAFT_SERVER_LISTEN_ADDRESS) and always take precedence
// over file-based values.
package config
