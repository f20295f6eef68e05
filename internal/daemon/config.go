package daemon

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Hook is a single post-create command run inside a freshly created
// worktree, in grove's config idiom (project.go's ContainerConfig)
// generalized from container settings to workstream bootstrap hooks.
type Hook struct {
	Run string `yaml:"run"`
}

// Config is the parsed contents of $VEX_HOME/config.yaml. Every field is
// optional; zero values fall back to the documented defaults.
type Config struct {
	Agent struct {
		Command string `yaml:"command"`
	} `yaml:"agent"`

	Repo struct {
		Register struct {
			Hooks []Hook `yaml:"hooks"`
		} `yaml:"register"`
	} `yaml:"repo"`
}

const defaultAgentCommand = "claude --dangerously-skip-permissions"

// AgentCommand returns the configured agent command line, or the default.
func (c *Config) AgentCommand() string {
	if c.Agent.Command != "" {
		return c.Agent.Command
	}
	return defaultAgentCommand
}

// LoadConfig reads path, returning an empty (all-defaults) Config if the
// file does not exist.
func LoadConfig(path string) (*Config, error) {
	c := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}
