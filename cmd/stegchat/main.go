// Command stegchat is a line based chat client for a stegrelay server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opd-ai/stegrelay/carrier"
	"github.com/opd-ai/stegrelay/client"
	"github.com/opd-ai/stegrelay/config"
	"github.com/opd-ai/stegrelay/crypto"
)

const usage = `commands:
  <text>              send to everyone
  /msg <name> <text>  send to one participant
  /users              list participants
  /quit               leave`

// Config holds the command line configuration
type Config struct {
	ConfigFile string
	Channels   int
}

// newRootCommand creates the root cobra command
func newRootCommand() *cobra.Command {
	var cfg Config

	cmd := &cobra.Command{
		Use:   "stegchat",
		Short: "Chat through a stegrelay server",
		Long: `stegchat registers with a stegrelay server and reads chat lines from stdin.
Every line is hidden in a copy of the configured cover image before it leaves
the machine.

` + usage,
		Example: `  stegchat -c alice.toml`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), &cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.ConfigFile, "config", "c", "", "configuration file")
	cmd.Flags().IntVar(&cfg.Channels, "channels", carrier.RGB, "cover image channels (1 gray, 3 rgb, 4 rgba)")
	cmd.MarkFlagRequired("config")

	return cmd
}

// connect loads the configuration, identity and cover, then dials and
// registers with the relay.
func connect(ctx context.Context, cfg *Config) (*client.Client, func(), error) {
	fileCfg, err := config.LoadFile(cfg.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	if fileCfg.Client == nil {
		return nil, nil, errors.New("config: no [Client] section")
	}
	logCloser, err := fileCfg.Logging.Apply()
	if err != nil {
		return nil, nil, err
	}

	c := fileCfg.Client
	id, err := crypto.LoadOrCreateIdentity(c.IdentityFile)
	if err != nil {
		logCloser.Close()
		return nil, nil, fmt.Errorf("identity: %w", err)
	}
	cleanup := func() {
		crypto.WipeIdentity(id)
		logCloser.Close()
	}

	cover, err := carrier.Load(c.Carrier, cfg.Channels)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("cover image: %w", err)
	}
	relayKey, err := c.RelayKey()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	envOpts, err := fileCfg.Steg.EnvelopeOptions()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	cl, err := client.Dial(ctx, &client.Options{
		Addr:        c.RelayAddr,
		Name:        c.Name,
		Identity:    id,
		RelayKey:    relayKey,
		Cover:       cover,
		Envelope:    envOpts,
		DialTimeout: time.Duration(c.DialTimeout) * time.Millisecond,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return cl, cleanup, nil
}

// runChat connects, registers and relays lines from in until EOF, /quit or
// ctx is done.
func runChat(ctx context.Context, in io.Reader, out io.Writer, cfg *Config) error {
	cl, cleanup, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer cl.Close()

	printer := newPrinter(out)
	cl.OnMessage(printer.message)

	regCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = cl.Register(regCtx)
	cancel()
	if err != nil {
		return err
	}
	printer.linef("registered as %s", cl.Name())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cl.Done():
			return errors.New("relay closed the connection")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(ctx, cl, printer, line)
			if err != nil {
				printer.linef("error: %v", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// handleLine runs one input line and reports whether to quit.
func handleLine(ctx context.Context, cl *client.Client, p *printer, line string) (bool, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false, nil
	case line == "/quit":
		return true, nil
	case line == "/help":
		p.linef("%s", usage)
		return false, nil
	case line == "/users":
		users, err := cl.FetchUsers(ctx)
		if err != nil {
			return false, err
		}
		names := make([]string, len(users))
		for i, u := range users {
			names[i] = u.Name
		}
		sort.Strings(names)
		p.linef("users: %s", strings.Join(names, ", "))
		return false, nil
	case strings.HasPrefix(line, "/msg "):
		fields := strings.SplitN(strings.TrimPrefix(line, "/msg "), " ", 2)
		if len(fields) != 2 || fields[1] == "" {
			return false, errors.New("usage: /msg <name> <text>")
		}
		return false, cl.SendDirect(fields[0], fields[1])
	case strings.HasPrefix(line, "/"):
		return false, fmt.Errorf("unknown command %q, try /help", line)
	default:
		return false, cl.SendPublic(line)
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
