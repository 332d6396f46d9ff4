package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// HomeEnv roots both config and data under one directory when set, which suits containers.
const HomeEnv = "SPRINTBOARD_HOME"

const defaultAppName = "sprintboard"

// Paths holds the on-disk locations of one board instance.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogDir     string
}

// Options selects the instance name. DevMode keeps a separate "-dev" board.
type Options struct {
	AppName string
	DevMode bool
}

// Env is the host view a resolver reads from.
type Env struct {
	GOOS   string
	Getenv func(string) string
	Config string
	Home   string
}

// HostEnv captures the running process's environment.
func HostEnv() (Env, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Env{}, fmt.Errorf("user config dir: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("user home dir: %w", err)
	}
	return Env{GOOS: runtime.GOOS, Getenv: os.Getenv, Config: configDir, Home: home}, nil
}

// Resolve returns the paths for opts on the running host.
func Resolve(opts Options) (Paths, error) {
	env, err := HostEnv()
	if err != nil {
		return Paths{}, err
	}
	return env.Resolve(opts)
}

// Resolve picks config and data roots: HomeEnv first, then XDG, then the OS config dir.
// Data lives under ~/.local/share on linux and beside config elsewhere.
func (e Env) Resolve(opts Options) (Paths, error) {
	if e.Config == "" {
		return Paths{}, errors.New("empty user config dir")
	}
	name := instanceName(opts)
	getenv := e.Getenv
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	configBase, dataBase := e.Config, e.Config
	if e.GOOS == "linux" && e.Home != "" {
		dataBase = filepath.Join(e.Home, ".local", "share")
	}
	if e.GOOS != "windows" && e.GOOS != "darwin" {
		if v := strings.TrimSpace(getenv("XDG_CONFIG_HOME")); v != "" {
			configBase = v
		}
		if v := strings.TrimSpace(getenv("XDG_DATA_HOME")); v != "" {
			dataBase = v
		}
	}
	if v := strings.TrimSpace(getenv(HomeEnv)); v != "" {
		configBase, dataBase = v, v
	}

	dataDir := filepath.Join(dataBase, name)
	return Paths{
		ConfigPath: filepath.Join(configBase, name, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, name+".db"),
		LogDir:     filepath.Join(dataDir, "log"),
	}, nil
}

func instanceName(opts Options) string {
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = defaultAppName
	}
	if opts.DevMode {
		name += "-dev"
	}
	return name
}
