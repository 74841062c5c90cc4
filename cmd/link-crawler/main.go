package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/link-crawler/pkg/config"
)

const version = "0.1.0"

var (
	// errPagesFailed is returned by crawl when at least one page failed
	errPagesFailed = errors.New("one or more pages failed")
	// errConfigInvalid is returned by validate after it reported the problem
	errConfigInvalid = errors.New("configuration invalid")
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd creates the link-crawler command tree
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link-crawler",
		Short: "Crawl pages and report the links found in them",
		Long: `link-crawler fetches HTML pages one at a time, honoring per-host rate limits,
proxies from the environment and robot exclusions, and reports every link it
finds along with the links it skipped and why.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to YAML config file (defaults apply when empty)")
	cmd.PersistentFlags().String("loglevel", "info", "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newValidateCmd())
	return cmd
}

// setupLogger creates a stderr logger at the given level
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// loadConfig reads path, or starts from an empty config when path is empty,
// and validates the result.
func loadConfig(path string) (*config.AppConfig, []string, error) {
	cfg := &config.AppConfig{}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// logAppConfig logs the effective configuration
func logAppConfig(cfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: UserAgent:'%s', RateLimit:%v, MaxSocketsPerHost:%d, CacheBackend:%s",
		cfg.UserAgent, cfg.RateLimit, cfg.MaxSocketsPerHost, cfg.CacheBackend)
	log.Infof("Config Robots: Honor:%t, FetchTxt:%t, Retry405Head:%t, DisableProxy:%t",
		cfg.ShouldHonorRobotExclusions(), cfg.FetchRobotsTxt, cfg.ShouldRetry405Head(), cfg.DisableProxy)
	log.Infof("Config Links: ExcludedSchemes:%v, ExcludeExternal:%t, ExcludeInternal:%t, Patterns:%d",
		cfg.ExcludedSchemes, cfg.ExcludeExternalLinks, cfg.ExcludeInternalLinks, len(cfg.ExcludedPatterns))
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v, TLSTimeout:%v, DialerTimeout:%v, MaxRedirects:%d",
		cfg.HTTPClientSettings.Timeout, cfg.HTTPClientSettings.MaxIdleConns, cfg.HTTPClientSettings.MaxIdleConnsPerHost,
		cfg.HTTPClientSettings.IdleConnTimeout, cfg.HTTPClientSettings.TLSHandshakeTimeout, cfg.HTTPClientSettings.DialerTimeout,
		cfg.HTTPClientSettings.MaxRedirects)
}
