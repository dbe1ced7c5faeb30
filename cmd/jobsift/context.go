package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"jobsift/internal/api"
	"jobsift/internal/config"
	"jobsift/internal/daemonctl"
	"jobsift/internal/notifications"
	"jobsift/internal/queue"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, err := config.Load(path)
		c.configPath = resolved
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) client() *daemonctl.Client {
	return daemonctl.NewClient(c.configValue())
}

// withStore opens the queue database for the duration of fn. SQLite WAL mode
// allows this alongside a running daemon.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) withQueueService(fn func(*api.QueueService) error) error {
	return c.withStore(func(store *queue.Store) error {
		cfg := c.configValue()
		return fn(api.NewQueueService(store, api.Limits{
			MaxSpawnDepth: cfg.Pipeline.MaxSpawnDepth,
			MaxRetries:    cfg.Pipeline.MaxRetries,
		}))
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
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

var notificationsFor = notifications.NewService
