// Package config defines the session configuration and its defaults. A CLI,
// a config file and the HTTP start form all map onto the same SessionConfig.
package config
