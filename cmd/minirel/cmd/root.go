package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/hcl"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"minirel/storage"
	"minirel/types"
)

var (
	rootCmd = &cobra.Command{
		Use:               "minirel",
		Short:             "Storage engine tooling",
		Long:              "Minirel is a page-based relational storage engine; this tool inspects and dumps its files.",
		PersistentPreRunE: rootPreRun,
		PersistentPostRun: rootPostRun,
	}

	logFile   = ""
	logLevel  = "info"
	logStderr = true
	logWriter io.WriteCloser

	configFile = "minirel.hcl"
	noConfig   = false

	poolSize = 0

	cfgVars   = map[string]*pflag.Flag{}
	usedFlags = map[string]struct{}{}
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})

	fs := rootCmd.PersistentFlags()

	fs.StringVar(&logFile, "log-file", logFile, "`file` to use for logging")
	cfgVars["log-file"] = fs.Lookup("log-file")

	fs.StringVar(&logLevel, "log-level", logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	cfgVars["log-level"] = fs.Lookup("log-level")

	fs.BoolVarP(&logStderr, "log-stderr", "s", logStderr, "log to standard error")

	fs.IntVar(&poolSize, "page-cache", poolSize, "buffer pool capacity in pages; 0 for the default")
	cfgVars["page-cache"] = fs.Lookup("page-cache")

	fs.StringVar(&configFile, "config-file", configFile, "`file` to load config from")
	fs.BoolVar(&noConfig, "no-config", noConfig, "don't load config file")
}

func Execute() error {
	return rootCmd.Execute()
}

func rootPreRun(cmd *cobra.Command, args []string) error {
	cmd.Flags().Visit(
		func(flg *pflag.Flag) {
			usedFlags[flg.Name] = struct{}{}
		})

	if configFile != "" && !noConfig {
		if err := loadConfig(configFile); err != nil {
			return err
		}
	}

	if !logStderr && logFile != "" {
		w, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
		if err != nil {
			return err
		}
		logWriter = w
		log.SetOutput(w)
	}

	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(ll)
	return nil
}

func rootPostRun(cmd *cobra.Command, args []string) {
	if logWriter != nil {
		logWriter.Close()
	}
}

// loadConfig merges values from an hcl config file beneath any flag
// the user set explicitly on the command line.
func loadConfig(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var cfg map[string]interface{}
	if err := hcl.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for name, val := range cfg {
		flg, ok := cfgVars[name]
		if !ok {
			return fmt.Errorf("%s: unknown config variable %q", path, name)
		}
		if _, used := usedFlags[flg.Name]; used {
			continue
		}
		if err := flg.Value.Set(fmt.Sprint(val)); err != nil {
			return fmt.Errorf("%s: %s: %w", path, name, err)
		}
	}
	return nil
}

// parseSchema turns a comma-separated column list like
// "int,string,int" into a tuple descriptor.
func parseSchema(spec string) (*storage.TupleDesc, error) {
	var items []storage.TDItem
	for i, col := range strings.Split(spec, ",") {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "int":
			items = append(items, storage.TDItem{Type: types.IntType, Name: fmt.Sprintf("f%d", i)})
		case "string":
			items = append(items, storage.TDItem{Type: types.StringType, Name: fmt.Sprintf("f%d", i)})
		default:
			return nil, fmt.Errorf("unknown column type %q", col)
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty schema")
	}
	return storage.NewTupleDesc(items), nil
}
