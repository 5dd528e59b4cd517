package overseer

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML-loadable shape of a Spec, mirroring the teacher's
// cmd/demo Config pattern: a plain struct with yaml tags, parsed once at
// startup and translated into the package's real types.
type FileConfig struct {
	Adapter struct {
		Kind   string `yaml:"kind"`
		Prefix string `yaml:"prefix"`

		Local struct {
			Command []string `yaml:"command"`
			Dir     string   `yaml:"dir"`
		} `yaml:"local"`

		EC2 struct {
			AMI          string `yaml:"ami"`
			InstanceType string `yaml:"instance_type"`
			Spot         bool   `yaml:"spot"`
			Subnet       string `yaml:"subnet"`
			Region       string `yaml:"region"`
		} `yaml:"ec2"`
	} `yaml:"adapter"`

	Release struct {
		URL      string `yaml:"url"`
		Module   string `yaml:"module"`
		Function string `yaml:"function"`
	} `yaml:"release"`

	Strategy        string `yaml:"strategy"`
	MaxNodes        int    `yaml:"max_nodes"`
	ConnTimeoutMS   int    `yaml:"conn_timeout_ms"`
	PairTimeoutMS   int    `yaml:"pair_timeout_ms"`
	OverseerID      string `yaml:"overseer_id"`
	AuditLogPath    string `yaml:"audit_log_path"`

	Transport struct {
		ListenAddr string `yaml:"listen_addr"`
		CertFile   string `yaml:"cert_file"`
		KeyFile    string `yaml:"key_file"`
	} `yaml:"transport"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

// LoadFileConfig reads and parses a YAML config file at path.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("overseer: read config %q: %w", path, err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("overseer: parse config %q: %w", path, err)
	}
	return &cfg, nil
}

// ConnTimeout and PairTimeout convert the config's millisecond fields into
// time.Duration for building a Spec.
func (c *FileConfig) ConnTimeout() time.Duration {
	return time.Duration(c.ConnTimeoutMS) * time.Millisecond
}

func (c *FileConfig) PairTimeout() time.Duration {
	return time.Duration(c.PairTimeoutMS) * time.Millisecond
}
