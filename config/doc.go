// Package config reads the ZHUR_* environment and builds the process logger.
//
// Every variable has a default. Binaries call FromEnv once at startup and
// apply their command line flags on top of the result.
package config
