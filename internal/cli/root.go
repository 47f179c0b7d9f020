package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rankboard/internal/config"
	"rankboard/internal/format"
	"rankboard/internal/logging"
)

type App struct {
	ConfigFile string
	Config     *config.Config
	Log        *zap.Logger

	// verboseLogs is set by long-running commands that want info-level logs.
	verboseLogs bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "rankboard",
		Short:        "Ranked board and tree manager with optimistic drag and drop",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive tree view
  rankboard

  # Load a board from a fixture and serve the object API
  rankboard seed board.yaml
  rankboard serve --listen 127.0.0.1:7410

  # Scriptable commands (against a server with --server)
  rankboard items list
  rankboard items move item-abc123 --by -1
  rankboard items drop item-abc123 --x 100 --y 70

  # Direct item lookup (shortcut for: rankboard items show <item-id>)
  rankboard item-abc123
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive tree view.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(app.ConfigFile, cmd.Flags())
		if err != nil {
			return writeErr(cmd, err)
		}
		app.Config = cfg
		return nil
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.Log != nil {
			_ = app.Log.Sync()
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.ConfigFile, "config", "", "Config file (default: ./rankboard.yaml if present)")
	cmd.PersistentFlags().String("dir", "", "Store directory (default: nearest .rankboard above the working directory)")
	cmd.PersistentFlags().String("server", "", "Object API base URL; when set, commands talk to a running server instead of the local store")
	cmd.PersistentFlags().Bool("pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().String("format", config.DefaultFormat, "Output format (json|table)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newSeedCmd(app))
	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newTreeCmd(app))
	cmd.AddCommand(newOptionsCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newTUICmd(app))

	return cmd
}

// logger builds the process logger on first use. Only serve logs at info;
// everything else stays at warn so stdout/stderr remain scriptable.
func (app *App) logger() (*zap.Logger, error) {
	if app.Log != nil {
		return app.Log, nil
	}
	var (
		l   *zap.Logger
		err error
	)
	if app.verboseLogs {
		l, err = logging.New(app.Config.Verbose)
	} else {
		l, err = logging.Quiet(app.Config.Verbose)
	}
	if err != nil {
		return nil, err
	}
	app.Log = l
	return l, nil
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Config.Format, app.Config.Pretty)
}

// writeEnvelope wraps data in the {data, meta, _hints} envelope for JSON.
// Under the table format a Tabular data value is rendered on its own.
func writeEnvelope(cmd *cobra.Command, app *App, data any, meta map[string]any, hints ...string) error {
	if app.Config.Format == "table" {
		if _, ok := data.(format.Tabular); ok {
			return writeOut(cmd, app, data)
		}
	}
	env := map[string]any{"data": data}
	if len(meta) > 0 {
		env["meta"] = meta
	}
	if len(hints) > 0 {
		env["_hints"] = hints
	}
	return writeOut(cmd, app, env)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

var errNeedsLocalStore = errors.New("this command needs the local store; drop --server or run it where the store lives")
