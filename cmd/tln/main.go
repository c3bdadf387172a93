package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/modoterra/tln/internal/buildinfo"
	"github.com/modoterra/tln/pkg/config"
	"github.com/modoterra/tln/pkg/daemon/service"
	"github.com/modoterra/tln/pkg/host"
	"github.com/modoterra/tln/pkg/plugins/logs"
	"github.com/modoterra/tln/pkg/secret"
	"github.com/modoterra/tln/pkg/transport/uds"
	tuimodel "github.com/modoterra/tln/pkg/tui/model"
)

var (
	socketPath string
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tln",
	Short:         "Log collector plugin host",
	Long:          "tln talks to the tlnd daemon: it adds encrypted log lines, requests reports and manages plugins.",
	SilenceUsage:  true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon socket path (default from config)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to tln.yaml")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(unloadCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serviceCmd)
}

func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(configPath)
}

func resolveSocket() (string, error) {
	if socketPath != "" {
		return socketPath, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Socket, nil
}

// loadBox returns the cipher for the configured key, or nil when none is set.
func loadBox() (*secret.Box, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Key == "" && cfg.KeyFile == "" {
		return nil, nil
	}
	key, err := cfg.ResolveKey()
	if err != nil {
		return nil, err
	}
	return secret.NewBox(key)
}

// --- Root: TUI ---

func runTUI(_ *cobra.Command, _ []string) error {
	sock, err := resolveSocket()
	if err != nil {
		return err
	}
	box, err := loadBox()
	if err != nil {
		return err
	}
	ensureDaemon(sock)

	var enc tuimodel.Encrypter
	if box != nil {
		enc = box
	}
	app := tuimodel.New(sock, enc)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func ensureDaemon(sock string) {
	if _, err := os.Stat(sock); err == nil {
		return
	}
	cmd := exec.Command("tlnd", "--config", configPath)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not start daemon:", err)
		return
	}
	for i := 0; i < 30; i++ {
		if _, err := os.Stat(sock); err == nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr, "warning: could not start daemon, continuing anyway")
}

func dialDaemon() (*uds.Client, error) {
	sock, err := resolveSocket()
	if err != nil {
		return nil, err
	}
	client, err := uds.Dial(sock)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", sock, err)
	}
	return client, nil
}

func request(method string, data any, out any) error {
	client, err := dialDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Request(ctx, method, data)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.UnmarshalData(out)
}

func dispatch(cmd *cobra.Command, plugin, action, data string) error {
	var resp uds.DispatchResponse
	if err := request(uds.MethodDispatch, uds.DispatchRequest{Plugin: plugin, Action: action, Data: data}, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%s %s: %s", plugin, action, resp.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", resp.Ack, resp.Outcome)
	return nil
}

// --- Ping ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if daemon is running",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var pong uds.PingResponse
		if err := request(uds.MethodPing, nil, &pong); err != nil {
			return err
		}
		if pong.Pong {
			fmt.Fprintf(cmd.OutOrStdout(), "pong ✓ %s (tlnd %s)\n", pong.Name, pong.Version)
		}
		return nil
	},
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tln %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}

// --- Plugins ---

var pluginsJSON bool

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List registered plugins",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var plugins []host.Info
		if err := request(uds.MethodListPlugins, nil, &plugins); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if pluginsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(plugins)
		}

		if len(plugins) == 0 {
			fmt.Fprintln(out, "no plugins")
			return nil
		}
		fmt.Fprintf(out, "%-20s %s\n", "NAME", "STATE")
		for _, p := range plugins {
			state := "unloaded"
			if p.Loaded {
				state = "loaded"
			}
			fmt.Fprintf(out, "%-20s %s\n", p.Name, state)
		}
		return nil
	},
}

func init() {
	pluginsCmd.Flags().BoolVar(&pluginsJSON, "json", false, "output as JSON")
}

// --- Status ---

var statusCmd = &cobra.Command{
	Use:   "status [plugin]",
	Short: "Print a plugin's status (default: logs)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plugin := logs.Module
		if len(args) > 0 {
			plugin = args[0]
		}
		var sr uds.StatusResponse
		if err := request(uds.MethodStatus, uds.PluginRequest{Plugin: plugin}, &sr); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), sr.Status)
		return nil
	},
}

// --- Logs plugin commands ---

var addCmd = &cobra.Command{
	Use:   "add <text...>",
	Short: "Encrypt a line with the configured key and add it to the buffer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		box, err := loadBox()
		if err != nil {
			return err
		}
		if box == nil {
			return fmt.Errorf("no key configured (set key, key_file or TLN_KEY)")
		}
		ct, err := box.Encrypt(strings.Join(args, " "))
		if err != nil {
			return err
		}
		return dispatch(cmd, logs.Module, logs.ActionAdd, ct)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report [target]",
	Short: "Ask the logs plugin to publish a report (default target: myself)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := logs.ReportSelf
		if len(args) > 0 {
			target = args[0]
		}
		return dispatch(cmd, logs.Module, logs.ActionReport, target)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every buffered line",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return dispatch(cmd, logs.Module, logs.ActionClear, "")
	},
}

// --- Load / Unload ---

var loadCmd = &cobra.Command{
	Use:   "load <plugin>",
	Short: "Load a registered plugin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := request(uds.MethodLoadPlugin, uds.PluginRequest{Plugin: args[0]}, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "load → %s ✓\n", args[0])
		return nil
	},
}

var unloadCmd = &cobra.Command{
	Use:   "unload <plugin>",
	Short: "Unload a plugin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ur uds.UnloadResponse
		if err := request(uds.MethodUnloadPlugin, uds.PluginRequest{Plugin: args[0]}, &ur); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s → %s ✓\n", ur.Token, args[0])
		return nil
	},
}

// --- Watch ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print reports as the daemon publishes them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		out := cmd.OutOrStdout()
		client.OnEvent(func(m uds.Message) {
			if m.Method != uds.EventReportPublished {
				return
			}
			var re uds.ReportEvent
			if err := m.UnmarshalData(&re); err != nil {
				return
			}
			fmt.Fprintf(out, "# %s\n%s", re.Topic, re.Payload)
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Ping so the server registers the connection before we wait.
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if _, err := client.Request(pingCtx, uds.MethodPing, nil); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-client.Done():
			return fmt.Errorf("watch: %w", uds.ErrConnClosed)
		}
	},
}

// --- Keygen ---

var keygenOutput string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a hex-encoded 256-bit key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := secret.GenerateKey()
		if err != nil {
			return err
		}
		defer key.Zero()

		if keygenOutput == "" {
			fmt.Fprintln(cmd.OutOrStdout(), key.Hex())
			return nil
		}
		if err := os.WriteFile(keygenOutput, []byte(key.Hex()+"\n"), 0o600); err != nil {
			return fmt.Errorf("write key: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "key written to %s\n", keygenOutput)
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOutput, "output", "o", "", "write the key to this file (mode 0600)")
}

// --- Config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tln.yaml",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a tln.yaml config",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) > 0 {
			path = args[0]
		}

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		errs := config.Validate(cfg)
		if len(errs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (name %s)\n", path, cfg.Name)
			return nil
		}

		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "%s: %d error(s)\n", path, len(errs))
		for _, e := range errs {
			fmt.Fprintf(errOut, "  • %s\n", e)
		}
		return fmt.Errorf("%s is invalid", path)
	},
}

var configInitOutput string

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default tln.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := os.Stat(configInitOutput); err == nil {
			return fmt.Errorf("%s already exists", configInitOutput)
		}
		if err := config.Save(config.Default(), configInitOutput); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", configInitOutput)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitOutput, "output", config.DefaultPath, "output file path")
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
}

// --- Service ---

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the tlnd systemd user service",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install, enable and start tlnd as a user service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfgArg := ""
		if _, err := os.Stat(configPath); err == nil {
			cfgArg = configPath
		}
		if err := service.Install(cmd.Context(), cfgArg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "tlnd service installed ✓")
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop, disable and remove the tlnd user service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := service.Uninstall(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "tlnd service removed ✓")
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show socket and service state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sock, err := resolveSocket()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), service.Status(cmd.Context(), sock))
		return nil
	},
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
}
