// Command steg hides and reveals text, files and images in carrier images.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/stegrelay/carrier"
	"github.com/opd-ai/stegrelay/config"
	"github.com/opd-ai/stegrelay/steg"
)

// Config holds the command line configuration shared by every subcommand.
type Config struct {
	ConfigFile       string
	Channels         int
	Policy           string
	LegacyImageFrame bool
	LogLevel         string
}

// codecOptions merges the optional config file with the flags; flags win
// when set explicitly.
func (c *Config) codecOptions(cmd *cobra.Command) ([]steg.Option, error) {
	opts := steg.NewOptions()

	if c.ConfigFile != "" {
		cfg, err := config.LoadFile(c.ConfigFile)
		if err != nil {
			return nil, err
		}
		fileOpts, err := cfg.Steg.CodecOptions()
		if err != nil {
			return nil, err
		}
		opts = fileOpts
	}

	if c.ConfigFile == "" || cmd.Flags().Changed("policy") {
		policy, err := steg.ParseCapacityPolicy(c.Policy)
		if err != nil {
			return nil, err
		}
		opts.Policy = policy
	}
	if cmd.Flags().Changed("legacy-image-frame") {
		opts.LegacyImageFrame = c.LegacyImageFrame
	}

	return []steg.Option{steg.WithOptions(*opts)}, nil
}

// load reads a carrier and wraps it in a codec.
func (c *Config) load(cmd *cobra.Command, path string) (*steg.Codec, error) {
	pb, err := carrier.Load(path, c.Channels)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	opts, err := c.codecOptions(cmd)
	if err != nil {
		return nil, err
	}
	return steg.NewCodec(pb, opts...)
}

// newRootCommand creates the root cobra command
func newRootCommand() *cobra.Command {
	cfg := &Config{}

	cmd := &cobra.Command{
		Use:   "steg",
		Short: "LSB steganography tool",
		Long: `Hide text, arbitrary files or whole images in the least significant bits
of a carrier image, and reveal them again.

Stego images must be saved in a lossless format (png, bmp, tiff). By default
only bit plane 0 is used; --policy all-planes lets large payloads spill into
higher planes at the cost of visible distortion.`,
		Example: `  # Hide a message and read it back
  steg hide-text cover.png out.png --text "meet at dawn"
  steg reveal-text out.png

  # How much fits?
  steg capacity cover.png`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&cfg.ConfigFile, "config", "c", "", "configuration file ([Steg] section)")
	flags.IntVar(&cfg.Channels, "channels", carrier.RGB, "carrier channels (1 gray, 3 rgb, 4 rgba)")
	flags.StringVar(&cfg.Policy, "policy", steg.SinglePlane.String(), "capacity policy (single-plane, all-planes)")
	flags.BoolVar(&cfg.LegacyImageFrame, "legacy-image-frame", false, "image frames without a channel field")
	flags.StringVar(&cfg.LogLevel, "log-level", "warn", "logging level (debug, info, warn, error)")

	cmd.AddCommand(
		newHideTextCommand(cfg),
		newRevealTextCommand(cfg),
		newHideFileCommand(cfg),
		newRevealFileCommand(cfg),
		newHideImageCommand(cfg),
		newRevealImageCommand(cfg),
		newCapacityCommand(cfg),
	)

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
