// Package config defines the CLI structure and configuration for nscon.
package config

import (
	"github.com/alecthomas/kong"

	"github.com/Alia5/nscon/internal/cmd"
)

type Log struct {
	Level   string `help:"Log level: trace, debug, info, warn, error" default:"info" env:"NSCON_LOG_LEVEL"`
	File    string `help:"Log file path (default: none; logs only to console)" env:"NSCON_LOG_FILE"`
	RawFile string `help:"Raw frame log file path (default: none)" env:"NSCON_LOG_RAW_FILE"`
}

// CLI is the root command structure for Kong CLI parsing.
type CLI struct {
	Log     `embed:"" prefix:"log."`
	Config  string           `help:"Configuration file (json, yaml or toml)" type:"path" env:"NSCON_CONFIG"`
	Version kong.VersionFlag `help:"Print the version and exit"`

	Emulate cmd.Emulate       `cmd:"" default:"withargs" help:"Emulate a Pro Controller on a transport"`
	Set     cmd.Set           `cmd:"" help:"Send input assignments to a running emulator"`
	State   cmd.State         `cmd:"" help:"Print input state and session counters of a running emulator"`
	Cfg     cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration helpers"`
}
