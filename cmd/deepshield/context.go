package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"deepshield/internal/config"
	"deepshield/internal/store"
)

// skipConfigAnnotation marks commands that must run without a loadable config.
const skipConfigAnnotation = "skipConfigLoad"

type loadedConfig struct {
	cfg  *config.Config
	path string
}

// commandContext loads the configuration at most once per invocation.
type commandContext struct {
	configFlag *string
	load       func() (loadedConfig, error)
	configPath string
}

func newCommandContext(configFlag *string) *commandContext {
	c := &commandContext{configFlag: configFlag}
	c.load = sync.OnceValues(func() (loadedConfig, error) {
		cfg, path, _, err := config.Load(c.flagPath())
		if err != nil {
			return loadedConfig{}, err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return loadedConfig{}, err
		}
		return loadedConfig{cfg: cfg, path: path}, nil
	})
	return c
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	loaded, err := c.load()
	if err != nil {
		return nil, err
	}
	c.configPath = loaded.path
	return loaded.cfg, nil
}

func (c *commandContext) flagPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// withStore opens the post store for the duration of fn. The server may be
// running; SQLite WAL mode lets the CLI read alongside it.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open post store: %w", err)
	}
	defer st.Close()
	return fn(cfg, st)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
