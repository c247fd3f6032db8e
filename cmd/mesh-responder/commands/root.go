// Package commands implements the mesh-responder command line.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Archie3d/mesh-responder/pkg/client"
	"github.com/Archie3d/mesh-responder/pkg/logging"
	"github.com/Archie3d/mesh-responder/pkg/meshtastic"
	"github.com/Archie3d/mesh-responder/pkg/radio"
	"github.com/Archie3d/mesh-responder/pkg/responder"
	"github.com/Archie3d/mesh-responder/pkg/settings"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const noInputMessage = "No input provided. Exiting."

type rootOptions struct {
	port         string
	configFile   string
	settingsFile string
	reply        string
	trigger      string
	noEdit       bool
	logLevel     string
	logFile      string
	envFile      string

	// Serial port opener, the real serial port if nil
	opener client.PortOpener
	editor settings.Editor
}

func Execute() error {
	root := newRootCommand(&rootOptions{})
	root.AddCommand(portsCmd(), versionCmd())
	return root.Execute()
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mesh-responder",
		Short: "Reply to Meshtastic text messages containing a trigger phrase",
		Long: "Listens for text messages on a Meshtastic mesh through a Waveshare USB LoRa dongle\n" +
			"and broadcasts a date stamped reply whenever a message contains the signal phrase.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyEnv(cmd, opts.envFile); err != nil {
				return err
			}

			closer, err := logging.Setup(logging.Options{Level: opts.logLevel, File: opts.logFile, MaxBackups: 3})
			if err != nil {
				return err
			}
			defer closer.Close()

			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.port, "port", "p", "", "serial port of the LoRa dongle (auto-detected if empty)")
	flags.StringVarP(&opts.configFile, "config", "c", "", "node configuration file (built-in defaults if empty)")
	flags.StringVar(&opts.settingsFile, "settings", settings.DefaultFileName, "file the reply message and signal are kept in")
	flags.StringVar(&opts.reply, "reply", "", "reply message, overrides the saved one")
	flags.StringVar(&opts.trigger, "signal", "", "signal phrase, overrides the saved one")
	flags.BoolVar(&opts.noEdit, "no-edit", false, "do not show the settings form")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", "", "also write the log to this file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "file with MESH_RESPONDER_* defaults for the flags above")

	return cmd
}

func run(cmd *cobra.Command, opts *rootOptions) error {
	store := settings.NewFileStore(opts.settingsFile)

	initial := store.Load()
	if opts.reply != "" {
		initial.ReplyMessage = opts.reply
	}
	if opts.trigger != "" {
		initial.Trigger = opts.trigger
	}

	editor := opts.editor
	if editor == nil {
		if opts.noEdit {
			editor = settings.StaticEditor{}
		} else {
			editor = &settings.FormEditor{}
		}
	}

	s, err := editor.Edit(initial)
	if err != nil {
		return err
	}

	if !s.Complete() {
		fmt.Fprintln(cmd.OutOrStdout(), noInputMessage)
		return nil
	}

	if err := store.Save(s); err != nil {
		log.With("err", err).Warn("Settings not saved")
	}

	config := meshtastic.DefaultNodeConfiguration()
	if opts.configFile != "" {
		if config, err = meshtastic.LoadNodeConfiguration(opts.configFile); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	port := opts.port
	if port == "" && opts.opener == nil {
		if port, err = client.FindPort(); err != nil {
			return err
		}
		log.With("port", port).Info("Using serial port")
	}

	node := meshtastic.NewNode(port, config, opts.opener)
	if config.NatsUrl != "" {
		node.AddApplication(meshtastic.NewTextApplication(config))
	}

	engine := responder.NewEngine(s.ReplyMessage, s.Trigger, radio.NewMeshChannel(node, config.ReplyChannel))
	if err := engine.Start(); err != nil {
		return err
	}

	if err := node.Start(); err != nil {
		return fmt.Errorf("failed to connect to the radio: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	// Make sure we turn the radio off
	if err := node.Stop(); err != nil {
		log.With("err", err).Warn("Failed to close the radio")
	}

	stats := engine.Stats()
	log.With(
		"received", stats.Received,
		"matched", stats.Matched,
		"sent", stats.Sent,
		"failed", stats.SendFailed,
	).Info("Stopped")

	return nil
}
