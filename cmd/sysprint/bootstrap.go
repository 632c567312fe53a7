package main

import (
	"github.com/jamesainslie/sysprint/pkg/sysprint/config"
	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
)

// loggingConfig converts the logging section, letting --verbose mirror
// debug records to the console.
func loggingConfig(c *config.Config, verbose bool) logging.Config {
	lc := c.LoggingConfig()
	if verbose {
		lc.Level = "debug"
		lc.ConsoleLevel = "debug"
	}
	return lc
}

func initLogging(c *config.Config) error {
	return logging.Init(loggingConfig(c, getVerbose()))
}
