package cli

import (
	"github.com/scanserver/scanner-client/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"time"
)

// Config mirrors the persistent flags.  Empty values leave the flag alone.
type Config struct {
	Server            string        `yaml:"server"`
	Verbosity         string        `yaml:"verbosity"`
	Timeout           time.Duration `yaml:"timeout"`
	AutoReconnect     *bool         `yaml:"autoReconnect"`
	ReconnectInterval time.Duration `yaml:"reconnectInterval"`
	MetricsAddr       string        `yaml:"metricsAddr"`
	JaegerURL         string        `yaml:"jaegerURL"`
	Output            string        `yaml:"output"`
}

// LoadConfig reads flags.ConfigPath, if set, and copies its values into every
// flag which was not given explicitly on the command line.
func LoadConfig(cmd *cobra.Command, flags *RootFlags) error {
	if flags.ConfigPath == "" {
		return nil
	}
	config, err := utils.ParseYamlFromFile[Config](flags.ConfigPath)
	if err != nil {
		return err
	}
	ApplyConfig(func(name string) bool { return cmd.Flags().Changed(name) }, config, flags)
	return nil
}

func ApplyConfig(changed func(name string) bool, config *Config, flags *RootFlags) {
	setString := func(name string, value string, target *string) {
		if value != "" && !changed(name) {
			logrus.Debugf("using %s from config file", name)
			*target = value
		}
	}
	setDuration := func(name string, value time.Duration, target *time.Duration) {
		if value != 0 && !changed(name) {
			logrus.Debugf("using %s from config file", name)
			*target = value
		}
	}

	setString("server", config.Server, &flags.Server)
	setString("verbosity", config.Verbosity, &flags.Verbosity)
	setString("metrics-addr", config.MetricsAddr, &flags.MetricsAddr)
	setString("jaeger-url", config.JaegerURL, &flags.JaegerURL)
	setString("output", config.Output, &flags.Output)
	setDuration("timeout", config.Timeout, &flags.Timeout)
	setDuration("reconnect-interval", config.ReconnectInterval, &flags.ReconnectInterval)
	if config.AutoReconnect != nil && !changed("auto-reconnect") {
		flags.AutoReconnect = *config.AutoReconnect
	}
}
