// Package applog wires hikview's packages to a single shared logging
// backend so parser warnings and CLI progress share one configuration.
package applog

import (
	log "github.com/dsoprea/go-logging"
)

func init() {
	cla := log.NewConsoleLogAdapter()
	log.AddAdapter("console", cla)
}

// New returns a logger scoped to the given component name, e.g. "hikview/hikvision".
func New(name string) *log.Logger {
	return log.NewLogger(name)
}

// SetVerbose raises the global level to debug. Called once from the CLI root
// command when --verbose is set.
func SetVerbose() {
	scp := log.NewStaticConfigurationProvider()
	scp.SetLevelName(log.LevelNameDebug)
	log.LoadConfiguration(scp)
}
