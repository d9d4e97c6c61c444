package config

import (
	"github.com/jessevdk/go-flags"
)

// CmdEnv contains the command line options. It is separate from the config
// struct so that command line and environment overrides can be applied after
// the config file is loaded.
type CmdEnv struct {
	ConfigLocation string `short:"c" long:"config" env:"THERMOSTAT_CONFIG" description:"config file to load (YAML or TOML); omit to run on defaults"`
	LogLevel       string `long:"log-level" env:"THERMOSTAT_LOG_LEVEL" description:"override the configured log level"`
	Debug          bool   `short:"d" long:"debug" description:"enable the debug service"`
	Validate       bool   `long:"validate" description:"validate the config and exit"`
	Version        bool   `short:"v" long:"version" description:"print version and exit"`
}

// NewCmdEnvOptions parses the command line (args should be os.Args).
func NewCmdEnvOptions(args []string) (*CmdEnv, error) {
	opts := &CmdEnv{}

	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.ParseArgs(args[1:]); err != nil {
		return nil, err
	}

	return opts, nil
}
