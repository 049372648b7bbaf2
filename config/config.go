package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/loadmesh/jenkins-converge/core/common"
	"github.com/loadmesh/jenkins-converge/model"
	"github.com/pelletier/go-toml"
)

const (
	defaultInterval = 5 * time.Minute
	defaultAction   = "create"
)

// Config is the manifest: where the server is, how to authenticate, and
// the desired state of its slaves, nodes and jobs.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Credentials CredentialsConfig `toml:"credentials"`
	Remote      RemoteConfig      `toml:"remote"`
	DryRun      bool              `toml:"dry_run"`
	Concurrency int               `toml:"concurrency" default:"4"`
	Interval    string            `toml:"interval" default:"5m"`
	Slaves      []AgentEntry      `toml:"slave"`
	Nodes       []AgentEntry      `toml:"node"`
	Jobs        []JobEntry        `toml:"job"`

	// dir is the manifest's directory; relative job configs resolve against it.
	dir string
}

type ServerConfig struct {
	URL        string `toml:"url"`
	CLIJar     string `toml:"cli_jar"`
	JavaHome   string `toml:"java_home"`
	JVMOptions string `toml:"jvm_options"`
	Home       string `toml:"home"`
}

type CredentialsConfig struct {
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	PasswordFile string `toml:"password_file"`
	KeyFile      string `toml:"key_file"`
}

// RemoteConfig points at a gRPC executor agent. When Endpoint is empty
// commands run locally.
type RemoteConfig struct {
	Endpoint string `toml:"endpoint"`
	Listen   string `toml:"listen" default:":50051"`
}

type AgentEntry struct {
	Name           string            `toml:"name"`
	Action         string            `toml:"action" default:"create"`
	Description    string            `toml:"description"`
	RemoteFS       string            `toml:"remote_fs"`
	Mode           string            `toml:"mode"`
	Executors      int               `toml:"executors" default:"1"`
	Labels         []string          `toml:"labels"`
	Launcher       LauncherEntry     `toml:"launcher"`
	Availability   AvailabilityEntry `toml:"availability"`
	Env            map[string]string `toml:"env"`
	OfflineMessage string            `toml:"offline_message"`
	JVMOptions     string            `toml:"jvm_options"`
}

type LauncherEntry struct {
	Type       string `toml:"type"`
	Command    string `toml:"command"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Username   string `toml:"username"`
	Credential string `toml:"credential"`
}

type AvailabilityEntry struct {
	Type          string `toml:"type"`
	InDemandDelay int    `toml:"in_demand_delay"`
	IdleDelay     int    `toml:"idle_delay"`
}

type JobEntry struct {
	Name       string            `toml:"name"`
	Action     string            `toml:"action" default:"create"`
	Config     string            `toml:"config"`
	Parameters map[string]string `toml:"parameters"`
	Wait       bool              `toml:"wait"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes a manifest. dir is used to resolve relative job configs.
func Parse(data []byte, dir string) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	cfg.dir = dir
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.URL == "" && c.Remote.Endpoint == "" {
		return fmt.Errorf("%w: server.url or remote.endpoint is required", common.ErrInvalidConfig)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be >= 0, got %d", common.ErrInvalidConfig, c.Concurrency)
	}
	if _, err := c.WatchInterval(); err != nil {
		return err
	}
	return nil
}

func (c *Config) WatchInterval() (time.Duration, error) {
	if c.Interval == "" {
		return defaultInterval, nil
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: invalid interval %q", common.ErrInvalidConfig, c.Interval)
	}
	return d, nil
}

func (c *Config) ExecOptions() model.ExecOptions {
	return model.ExecOptions{
		ServerURL:    c.Server.URL,
		Username:     c.Credentials.Username,
		Password:     c.Credentials.Password,
		PasswordFile: c.Credentials.PasswordFile,
		KeyFile:      c.Credentials.KeyFile,
		JVMOptions:   c.Server.JVMOptions,
		WorkingDir:   c.Server.Home,
		CLIJar:       c.Server.CLIJar,
		JavaHome:     c.Server.JavaHome,
	}
}

// Desired converts every entry into a validated desired resource, in
// manifest order: slaves, nodes, then jobs.
func (c *Config) Desired() ([]model.Desired, error) {
	var desired []model.Desired
	seen := make(map[string]bool)
	add := func(r model.Resource, action string) error {
		if action == "" {
			action = defaultAction
		}
		intent, err := model.ParseAction(action)
		if err != nil {
			return fmt.Errorf("%s: %w", model.ResourceKey(r), err)
		}
		key := model.ResourceKey(r)
		if seen[key] {
			return fmt.Errorf("%w: %s is declared more than once", common.ErrInvalidConfig, key)
		}
		seen[key] = true
		desired = append(desired, model.Desired{Resource: r, Intent: intent})
		return nil
	}

	for i := range c.Slaves {
		e := &c.Slaves[i]
		if e.JVMOptions != "" {
			return nil, fmt.Errorf("%w: slave %q: jvm_options is only valid for node entries",
				common.ErrInvalidConfig, e.Name)
		}
		s, err := model.NewSlave(e.agent())
		if err != nil {
			return nil, fmt.Errorf("slave %q: %w", e.Name, err)
		}
		if err := add(s, e.Action); err != nil {
			return nil, err
		}
	}
	for i := range c.Nodes {
		e := &c.Nodes[i]
		n, err := model.NewNode(e.agent(), e.JVMOptions)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", e.Name, err)
		}
		if err := add(n, e.Action); err != nil {
			return nil, err
		}
	}
	for i := range c.Jobs {
		e := &c.Jobs[i]
		j, err := model.NewJob(model.Job{
			Name:            e.Name,
			Config:          c.resolvePath(e.Config),
			BuildParameters: e.Parameters,
			WaitForBuild:    e.Wait,
		})
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", e.Name, err)
		}
		if err := add(j, e.Action); err != nil {
			return nil, err
		}
	}
	return desired, nil
}

func (c *Config) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

func (e *AgentEntry) agent() model.Agent {
	return model.Agent{
		Name:        e.Name,
		Description: e.Description,
		RemoteFS:    e.RemoteFS,
		Mode:        model.Mode(e.Mode),
		Executors:   e.Executors,
		Labels:      mapset.NewSet[string](e.Labels...),
		Launcher: model.Launcher{
			Type:       model.LauncherType(e.Launcher.Type),
			Command:    e.Launcher.Command,
			Host:       e.Launcher.Host,
			Port:       e.Launcher.Port,
			Username:   e.Launcher.Username,
			Credential: e.Launcher.Credential,
		},
		Availability: model.Availability{
			Type:          model.AvailabilityType(e.Availability.Type),
			InDemandDelay: e.Availability.InDemandDelay,
			IdleDelay:     e.Availability.IdleDelay,
		},
		Env:            e.Env,
		OfflineMessage: e.OfflineMessage,
	}
}
