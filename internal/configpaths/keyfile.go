package configpaths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// KeyFileName is the file holding the control API password.
const KeyFileName = "nscon.key.txt"

// KeyFileDir returns the directory of the API key file. Root services on
// unix use /etc/nscon.
func KeyFileDir() (string, error) {
	if runtime.GOOS != "windows" && os.Getenv("NSCON_CONFIG_DIR") == "" && os.Geteuid() == 0 {
		return filepath.Join(string(os.PathSeparator), "etc", appName), nil
	}
	return DefaultConfigDir()
}

// ReadKey returns the stored API password. A missing file yields fs.ErrNotExist.
func ReadKey() (string, error) {
	dir, err := KeyFileDir()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(filepath.Join(dir, KeyFileName))
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", fmt.Errorf("key file %s is empty", filepath.Join(dir, KeyFileName))
	}
	return key, nil
}

// LoadOrCreateKey returns the stored API password, or stores the one made by
// generate when there is none. created reports whether a new key was written.
func LoadOrCreateKey(generate func() (string, error)) (key, path string, created bool, err error) {
	dir, err := KeyFileDir()
	if err != nil {
		return "", "", false, fmt.Errorf("resolve key file path: %w", err)
	}
	path = filepath.Join(dir, KeyFileName)

	key, err = ReadKey()
	if err == nil {
		return key, path, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", path, false, err
	}

	key, err = generate()
	if err != nil {
		return "", path, false, fmt.Errorf("generate API password: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", path, false, fmt.Errorf("create config dir for key file: %w", err)
	}
	if err := os.WriteFile(path, []byte(key), 0o600); err != nil {
		return "", path, false, fmt.Errorf("write API password: %w", err)
	}
	return key, path, true, nil
}
