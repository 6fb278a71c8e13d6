package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"clipstudio/client"
	"clipstudio/config"
	"clipstudio/credentials"
	"clipstudio/events"
	"clipstudio/logging"
	"clipstudio/storage"
	"clipstudio/tui"
)

// eventBuffer is how many completion events may wait for Kafka
const eventBuffer = 64

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logFile *os.File
	closers []func() error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && *c.logLevelFlag != "" {
			cfg.Logging.Level = *c.logLevelFlag
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// initLogging sends logs to the configured file for TUI commands and to
// stderr otherwise.
func (c *commandContext) initLogging(cmd *cobra.Command, toFile bool) error {
	cfg := c.config
	if !toFile {
		logging.Init(cfg.Logging.Level, cmd.ErrOrStderr())
		return nil
	}
	f, err := logging.InitFile(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return err
	}
	c.logFile = f
	return nil
}

func (c *commandContext) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	c.closers = nil
	if c.logFile != nil {
		c.logFile.Close()
		c.logFile = nil
	}
}

func (c *commandContext) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

func (c *commandContext) client() *client.Client {
	return client.NewClient(c.config.API.BaseURL, c.config.RequestTimeout())
}

func (c *commandContext) store() (credentials.Store, error) {
	store, err := credentials.New(c.config.Credentials)
	if err != nil {
		return nil, err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		c.onClose(closer.Close)
	}
	return store, nil
}

// apiKey returns the key to send with clip requests. When none is stored it
// asks before falling back to the server's default key, unless assumeYes.
func (c *commandContext) apiKey(cmd *cobra.Command, assumeYes bool) (string, error) {
	store, err := c.store()
	if err != nil {
		return "", err
	}
	key, err := credentials.Resolve(cmd.Context(), store)
	if err != nil {
		return "", err
	}
	if key != "" || assumeYes {
		return key, nil
	}
	if !credentials.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), credentials.ConfirmDefaultKey) {
		return "", fmt.Errorf("no API key: save one with `clipstudio key set` or pass --yes")
	}
	return "", nil
}

func (c *commandContext) archiver(ctx context.Context) (storage.Archiver, error) {
	return storage.New(ctx, c.config.Archive)
}

// dispatcher returns nil when no brokers are configured.
func (c *commandContext) dispatcher() (*events.Dispatcher, error) {
	ev := c.config.Events
	if len(ev.KafkaBrokers) == 0 {
		return nil, nil
	}
	producer, err := events.NewProducer(events.ProducerConfig{Brokers: ev.KafkaBrokers, Topic: ev.KafkaTopic})
	if err != nil {
		return nil, err
	}
	d := events.NewDispatcher(producer, eventBuffer)
	c.onClose(d.Close)
	return d, nil
}

func (c *commandContext) deps(ctx context.Context, outDir string) (tui.Deps, error) {
	store, err := c.store()
	if err != nil {
		return tui.Deps{}, err
	}
	archiver, err := c.archiver(ctx)
	if err != nil {
		return tui.Deps{}, err
	}
	dispatcher, err := c.dispatcher()
	if err != nil {
		return tui.Deps{}, err
	}
	return tui.Deps{
		Client:   c.client(),
		Store:    store,
		Archiver: archiver,
		Events:   dispatcher,
		OutDir:   outDir,
	}, nil
}

// runProgram runs a TUI until it quits or ctx is cancelled
func runProgram(ctx context.Context, m tea.Model) error {
	program := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
