package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Alia5/nscon/apiclient"
	"github.com/Alia5/nscon/internal/configpaths"
)

// stdout receives command output.
var stdout io.Writer = os.Stdout

// ClientOptions selects the running emulator a client command talks to.
type ClientOptions struct {
	Addr       string        `help:"Control API address of the running emulator" default:"127.0.0.1:3243" env:"NSCON_API_ADDR"`
	Password   string        `help:"Control API password" env:"NSCON_API_PASSWORD"`
	UseKeyFile bool          `help:"Read the password from the local key file" env:"NSCON_API_USE_KEY_FILE"`
	Timeout    time.Duration `help:"Request timeout" default:"5s" env:"NSCON_API_TIMEOUT"`
}

func (o ClientOptions) client() (*apiclient.Client, error) {
	password := o.Password
	if password == "" && o.UseKeyFile {
		key, err := configpaths.ReadKey()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("no key file found; start the emulator with --api.require-auth first")
		}
		if err != nil {
			return nil, err
		}
		password = key
	}
	return apiclient.NewWithConfig(o.Addr, &apiclient.Config{
		DialTimeout:  o.Timeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
		Password:     password,
	}), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// joinAssignments glues a trailing duration argument onto the assignment
// before it, so `a=1 100ms b=1` needs no quoting.
func joinAssignments(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		if strings.Contains(arg, "=") {
			out = append(out, arg)
			continue
		}
		if len(out) == 0 || strings.Contains(out[len(out)-1], " ") {
			return nil, fmt.Errorf("unexpected argument %q", arg)
		}
		out[len(out)-1] += " " + arg
	}
	return out, nil
}
