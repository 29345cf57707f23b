package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/nscon/internal/configpaths"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit writes a configuration file holding the defaults of one command.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to generate config for" enum:"emulate,set,state"`
	Format  string `help:"Output format" enum:"json,yaml,yml,toml" default:"json"`
	Output  string `help:"Destination file path (defaults to <command>.<format> in the current directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

// Run generates the template from the command's flag model, so the keys are
// exactly what the configuration loaders resolve.
func (c *ConfigInit) Run() error {
	format := strings.ToLower(c.Format)
	switch format {
	case "json", "yaml", "yml", "toml":
	default:
		return fmt.Errorf("unsupported format: %s", c.Format)
	}

	var target any
	switch c.Command {
	case "emulate":
		target = &Emulate{}
	case "set":
		target = &Set{}
	case "state":
		target = &State{}
	default:
		return errors.New("unknown command; expected 'emulate', 'set' or 'state'")
	}
	root, err := configTemplate(target)
	if err != nil {
		return err
	}

	dest := c.Output
	if dest == "" {
		dest = c.Command + "." + configpaths.Ext(format)
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}

	var data []byte
	switch configpaths.Ext(format) {
	case "json":
		data, err = json.MarshalIndent(root, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(root)
	case "toml":
		data, err = toml.Marshal(root)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// configTemplate maps every configurable flag of target to its default.
// Dotted flag names become nested tables and dashes become underscores,
// which is how the JSON, YAML and TOML resolvers look values up.
func configTemplate(target any) (map[string]any, error) {
	parser, err := kong.New(target, kong.Name("nscon"))
	if err != nil {
		return nil, fmt.Errorf("build flag model: %w", err)
	}
	root := map[string]any{}
	for _, f := range parser.Model.Node.Flags {
		if f.Hidden || f.Name == "help" {
			continue
		}
		path := strings.Split(strings.ReplaceAll(f.Name, "-", "_"), ".")
		m := root
		for _, part := range path[:len(path)-1] {
			sub, ok := m[part].(map[string]any)
			if !ok {
				sub = map[string]any{}
				m[part] = sub
			}
			m = sub
		}
		if v := defaultValue(f.Target, f.Default); v != nil {
			m[path[len(path)-1]] = v
		}
	}
	return root, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func defaultValue(target reflect.Value, def string) any {
	t := target.Type()
	if t == durationType {
		if def == "" {
			return "0s"
		}
		return def
	}
	switch t.Kind() {
	case reflect.String:
		return def
	case reflect.Bool:
		b, _ := strconv.ParseBool(def)
		return b
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, _ := strconv.ParseInt(def, 10, 64)
		return n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, _ := strconv.ParseUint(def, 10, 64)
		return n
	case reflect.Float32, reflect.Float64:
		f, _ := strconv.ParseFloat(def, 64)
		return f
	default:
		return nil
	}
}
