// Command stegrelay runs the stegrelay server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/stegrelay/config"
	"github.com/opd-ai/stegrelay/crypto"
	"github.com/opd-ai/stegrelay/relay"
)

// Config holds the command line configuration
type Config struct {
	ConfigFile string
	GenKey     string
	ListenAddr string
}

// newRootCommand creates the root cobra command
func newRootCommand() *cobra.Command {
	var cfg Config

	cmd := &cobra.Command{
		Use:   "stegrelay",
		Short: "Steganographic chat relay",
		Long: `stegrelay forwards chat messages hidden in PNG carriers between registered
participants. It verifies each sender's signature but never reveals the hidden
text. With Noise enabled every client link is encrypted and authenticated.`,
		Example: `  # Create the relay identity and print its public key
  stegrelay --genkey /var/lib/stegrelay/identity.toml

  # Run with a configuration file
  stegrelay -c stegrelay.toml`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.GenKey != "" {
				return generateKey(cmd, cfg.GenKey)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRelay(ctx, cmd, &cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.ConfigFile, "config", "c", "", "configuration file")
	cmd.Flags().StringVar(&cfg.GenKey, "genkey", "", "write a new identity to this file, print its public key and exit")
	cmd.Flags().StringVarP(&cfg.ListenAddr, "listen", "l", "", "override the configured listen address")

	return cmd
}

// generateKey creates an identity file and prints the Noise public key
// clients need.
func generateKey(cmd *cobra.Command, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	id, err := crypto.GenerateIdentity()
	if err != nil {
		return err
	}
	defer crypto.WipeIdentity(id)

	if err := crypto.SaveIdentity(path, id); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), crypto.FormatKey(id.Box.Public))
	return nil
}

// loadConfig reads the configuration file, or returns defaults without one.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load(nil)
	}
	return config.LoadFile(path)
}

// runRelay starts the relay and blocks until ctx is done.
func runRelay(ctx context.Context, cmd *cobra.Command, cfg *Config) error {
	fileCfg, err := loadConfig(cfg.ConfigFile)
	if err != nil {
		return err
	}

	logCloser, err := fileCfg.Logging.Apply()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	relayCfg := fileCfg.Relay
	if relayCfg == nil {
		relayCfg = &config.Relay{}
		if err := (&config.Config{Relay: relayCfg}).FixupAndValidate(); err != nil {
			return err
		}
	}
	if cfg.ListenAddr != "" {
		relayCfg.ListenAddr = cfg.ListenAddr
	}

	var staticKey *[crypto.KeySize]byte
	if relayCfg.Noise {
		id, err := crypto.LoadOrCreateIdentity(relayCfg.IdentityFile)
		if err != nil {
			return fmt.Errorf("relay identity: %w", err)
		}
		defer crypto.WipeIdentity(id)
		staticKey = &id.Box.Private

		logrus.WithFields(logrus.Fields{
			"function":   "runRelay",
			"public_key": crypto.FormatKey(id.Box.Public),
		}).Info("Noise enabled")
	}

	server, err := relay.New(relayCfg.Options(staticKey))
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stegrelay listening on %s\n", server.Addr())

	<-ctx.Done()
	if err := server.Close(); err != nil && !errors.Is(err, relay.ErrNotStarted) {
		return err
	}
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
