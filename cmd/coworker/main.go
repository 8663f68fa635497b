package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mweinbach/agent-coworker/internal/store"
	"github.com/mweinbach/agent-coworker/internal/supervisor"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type cliOptions struct {
	home string
}

func (o *cliOptions) dataDir() string {
	if strings.TrimSpace(o.home) != "" {
		abs, err := filepath.Abs(o.home)
		if err == nil {
			return abs
		}
	}
	return store.DataDir()
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "coworker",
		Short:         "Coworker workspace server supervisor",
		Long:          "Run, inspect, and manage coworker workspace servers and their persisted state from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.home, "home", "", "Data directory (default: $COWORKER_HOME or ~/.coworker)")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newStateCmd(opts))
	rootCmd.AddCommand(newWorkspaceCmd(opts))
	rootCmd.AddCommand(newTranscriptCmd(opts))

	return rootCmd
}

// newRunCmd starts one workspace server in the foreground and keeps it alive
// until interrupted.
func newRunCmd(opts *cliOptions) *cobra.Command {
	var yolo bool
	cmd := &cobra.Command{
		Use:   "run <workspace-id> <workspace-path>",
		Short: "Start a workspace server and wait",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "coworker"})
			registry := supervisor.NewRegistry(supervisor.Config{Logger: logger})
			defer registry.StopAll()

			url, err := registry.EnsureRunning(cmd.Context(), args[0], args[1], yolo)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			select {
			case s := <-sig:
				logger.Info("shutting down", "signal", s.String())
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Start the server without tool approval prompts")
	return cmd
}

func newStateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the persisted application state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewStateStore(opts.dataDir()).Load()
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
}

func newWorkspaceCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage persisted workspaces",
	}

	var name string
	addCmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a workspace directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(abs)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", abs)
			}
			if strings.TrimSpace(name) == "" {
				name = filepath.Base(abs)
			}

			st := store.NewStateStore(opts.dataDir())
			state, err := st.Load()
			if err != nil {
				return err
			}
			for _, w := range state.Workspaces {
				if w.Path == abs {
					fmt.Fprintln(cmd.OutOrStdout(), w.ID)
					return nil
				}
			}
			now := time.Now().UTC().Format(time.RFC3339)
			rec := store.WorkspaceRecord{
				ID:        uuid.NewString(),
				Name:      name,
				Path:      abs,
				CreatedAt: now,
			}
			state.Workspaces = append(state.Workspaces, rec)
			if err := st.Save(state); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Display name (default: directory name)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := store.NewStateStore(opts.dataDir()).Load()
			if err != nil {
				return err
			}
			for _, w := range state.Workspaces {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", w.ID, w.Name, w.Path)
			}
			return nil
		},
	}

	cmd.AddCommand(addCmd, listCmd)
	return cmd
}

func newTranscriptCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect and edit thread transcripts",
	}

	showCmd := &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Print a thread transcript as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := store.NewTranscriptLog(opts.dataDir()).Read(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, evt := range events {
				if err := enc.Encode(evt); err != nil {
					return err
				}
			}
			return nil
		},
	}

	appendCmd := &cobra.Command{
		Use:   "append <thread-id> <direction> <payload-json>",
		Short: "Append one event to a thread transcript",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload any
			if err := json.Unmarshal([]byte(args[2]), &payload); err != nil {
				return fmt.Errorf("parse payload: %w", err)
			}
			evt := store.TranscriptEvent{
				TS:        time.Now().UTC().Format(time.RFC3339),
				ThreadID:  args[0],
				Direction: args[1],
				Payload:   payload,
			}
			return store.NewTranscriptLog(opts.dataDir()).AppendOne(evt)
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <thread-id>",
		Short: "Delete a thread transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return store.NewTranscriptLog(opts.dataDir()).Delete(args[0])
		},
	}

	cmd.AddCommand(showCmd, appendCmd, rmCmd)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
