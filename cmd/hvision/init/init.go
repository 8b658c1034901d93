// Package initcmder provides the init command for initializing a local
// .hvision directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/hvision/pkg/cliui"
	"github.com/papercomputeco/hvision/pkg/config"
	"github.com/papercomputeco/hvision/pkg/errs"
)

const (
	dirName = ".hvision"

	fetchTimeout = 30 * time.Second
)

const initLongDesc string = `Initialize a new .hvision/ directory in the current working directory.

Creates a local .hvision/ directory that takes precedence over the default
~/.hvision/ directory for configuration, the SQLite model registry and the
run history. A config.toml with default values is written unless one exists.

Use --preset to write the configuration of a deployment instead:
  local    everything on this machine (the default)
  minio    artifacts on a local MinIO, job events on a local Kafka broker
  aws      larger pools and a PostgreSQL model registry

--preset also accepts an http(s) URL to a config.toml to download.

Examples:
  hvision init
  hvision init --preset minio
  hvision init --preset https://example.com/hvision/config.toml`

const initShortDesc string = "Initialize a local .hvision/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", fmt.Sprintf("Deployment preset (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run(ctx context.Context, out io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .hvision directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	cfg, err := c.resolve(ctx)
	if err != nil {
		return err
	}

	// Without a preset an existing config is kept.
	if cfg == nil {
		if _, err := os.Stat(cfger.GetTarget()); err == nil {
			fmt.Fprintf(out, "Already initialized: %s\n", dir)
			return nil
		}
		cfg = config.NewDefaultConfig()
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Initialized %s\n  %s %s\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(dir),
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
	return nil
}

// resolve returns the preset config, or nil when no preset was given.
func (c *initCommander) resolve(ctx context.Context) (*config.Config, error) {
	switch {
	case c.preset == "":
		return nil, nil
	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		return fetchRemote(ctx, c.preset)
	default:
		cfg, err := config.PresetConfig(c.preset)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
		}
		return cfg, nil
	}
}

func fetchRemote(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	cfg, err := config.ParseConfigTOML(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrConfiguration, err)
	}
	return cfg, nil
}
