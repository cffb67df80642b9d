package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opd-ai/stegrelay/carrier"
	"github.com/opd-ai/stegrelay/limits"
	"github.com/opd-ai/stegrelay/steg"
)

func newHideTextCommand(cfg *Config) *cobra.Command {
	var text, textFile string

	cmd := &cobra.Command{
		Use:   "hide-text <cover> <output>",
		Short: "Hide a text message in a carrier",
		Long: `Hide a text message in a carrier. Each character is stored in 8 bits, so
only code points up to U+00FF are accepted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if textFile != "" {
				b, err := os.ReadFile(textFile)
				if err != nil {
					return err
				}
				text = string(b)
			}
			if text == "" {
				return errors.New("nothing to hide: use --text or --text-file")
			}

			codec, err := cfg.load(cmd, args[0])
			if err != nil {
				return err
			}
			stego, err := codec.EncodeText(text)
			if err != nil {
				return err
			}
			if err := carrier.Save(args[1], stego); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hid %d characters in %s (%d bit slots)\n",
				len([]rune(text)), args[1], codec.Position())
			return nil
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "message to hide")
	cmd.Flags().StringVarP(&textFile, "text-file", "f", "", "read the message from a file")
	return cmd
}

func newRevealTextCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reveal-text <stego>",
		Short: "Reveal a hidden text message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := cfg.load(cmd, args[0])
			if err != nil {
				return err
			}
			text, err := codec.DecodeText()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newHideFileCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "hide-file <cover> <payload> <output>",
		Short: "Hide an arbitrary file in a carrier",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			codec, err := cfg.load(cmd, args[0])
			if err != nil {
				return err
			}
			stego, err := codec.EncodeBinary(payload)
			if err != nil {
				return err
			}
			if err := carrier.Save(args[2], stego); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hid %d bytes in %s (%d bit slots)\n",
				len(payload), args[2], codec.Position())
			return nil
		},
	}
}

func newRevealFileCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reveal-file <stego> <output>",
		Short: "Reveal a hidden file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := cfg.load(cmd, args[0])
			if err != nil {
				return err
			}
			payload, err := codec.DecodeBinary()
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], payload, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revealed %d bytes to %s\n", len(payload), args[1])
			return nil
		},
	}
}

func newHideImageCommand(cfg *Config) *cobra.Command {
	var secretChannels int

	cmd := &cobra.Command{
		Use:   "hide-image <cover> <secret> <output>",
		Short: "Hide a whole image in a carrier",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := carrier.Load(args[1], secretChannels)
			if err != nil {
				return fmt.Errorf("load %s: %w", args[1], err)
			}
			codec, err := cfg.load(cmd, args[0])
			if err != nil {
				return err
			}
			stego, err := codec.EncodeImage(secret)
			if err != nil {
				return err
			}
			if err := carrier.Save(args[2], stego); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hid %dx%d image in %s (%d bit slots)\n",
				secret.Width, secret.Height, args[2], codec.Position())
			return nil
		},
	}

	cmd.Flags().IntVar(&secretChannels, "secret-channels", carrier.RGB, "channels kept from the secret image")
	return cmd
}

func newRevealImageCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reveal-image <stego> <output>",
		Short: "Reveal a hidden image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := cfg.load(cmd, args[0])
			if err != nil {
				return err
			}
			img, err := codec.DecodeImage()
			if err != nil {
				return err
			}
			if err := carrier.Save(args[1], img); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revealed %dx%d image to %s\n", img.Width, img.Height, args[1])
			return nil
		},
	}
}

func newCapacityCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "capacity <cover>",
		Short: "Report how much a carrier can hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := cfg.load(cmd, args[0])
			if err != nil {
				return err
			}
			pb := codec.Buffer()
			slots := codec.Capacity()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "carrier:     %dx%d, %d channels\n", pb.Width, pb.Height, pb.Channels)
			fmt.Fprintf(out, "bit slots:   %d usable, %d total\n", slots, codec.TotalCapacity())
			fmt.Fprintf(out, "text:        %d characters\n", maxUnits(slots, steg.TextFrameBits(0), 8, limits.MaxTextLength))
			fmt.Fprintf(out, "file:        %d bytes\n", maxUnits(slots, steg.BinaryFrameBits(0), 8, -1))
			return nil
		},
	}
}

// maxUnits returns how many unitBits-sized units fit after a frame header,
// capped at limit when limit is not negative.
func maxUnits(slots, header, unitBits, limit int) int {
	n := (slots - header) / unitBits
	if n < 0 {
		n = 0
	}
	if limit >= 0 && n > limit {
		n = limit
	}
	return n
}
