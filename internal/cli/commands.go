package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"spendlog/internal/backend"
	"spendlog/internal/chart"
	"spendlog/internal/config"
	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/services"
)

const actionAnnotation = "action"

// App holds the state shared by the sub-commands of one invocation.
type App struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	v      *viper.Viper
	logger *log.Logger
	cfg    *config.Config
	svc    *services.ExpenseService
}

func NewApp(in io.Reader, out, errOut io.Writer) *App {
	return &App{in: in, out: out, errOut: errOut, v: viper.New()}
}

// Execute runs the command tree with args and returns the process exit
// code. User errors are printed as their notice; anything else is
// prefixed with "Error:".
func (a *App) Execute(ctx context.Context, args []string) int {
	root := a.RootCommand()
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err == nil {
		return 0
	}
	if msg, ok := core.UserMessage(err); ok {
		fmt.Fprintln(a.errOut, msg)
	} else {
		fmt.Fprintln(a.errOut, "Error:", err)
	}
	return 1
}

// RootCommand builds the spendlog-cli command tree. Every tracker action
// has exactly one sub-command; the action name works as an alias.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "spendlog-cli",
		Short: "Record and report personal expenses",
		Long: `spendlog-cli works on the same storage as the spendlog web UI.
Add and delete records, list them with a running total, and print the
category breakdown or a monthly report.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.open,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (TOML, YAML or JSON); defaults to $CONFIG_FILE")
	pf.String("file", "", "expenses CSV file")
	pf.String("backend", "", "storage backend: "+strings.Join(backend.GetBackendTypeStrings(), ", "))
	pf.String("db", "", "SQLite database path")
	pf.BoolP("yes", "y", false, "do not ask for confirmation")
	pf.BoolP("verbose", "v", false, "log at the configured level instead of warn")
	_ = a.v.BindPFlag("config_file", pf.Lookup("config"))
	_ = a.v.BindPFlag("expenses_file", pf.Lookup("file"))
	_ = a.v.BindPFlag("data_backend", pf.Lookup("backend"))
	_ = a.v.BindPFlag("sqlite_db_path", pf.Lookup("db"))
	_ = a.v.BindPFlag("yes", pf.Lookup("yes"))
	_ = a.v.BindPFlag("verbose", pf.Lookup("verbose"))

	cmds := a.commands()
	for _, action := range services.Actions() {
		cmd := cmds[action]
		cmd.Annotations = map[string]string{actionAnnotation: action.String()}
		if cmd.Name() != action.String() {
			cmd.Aliases = append(cmd.Aliases, action.String())
		}
		root.AddCommand(cmd)
	}
	return root
}

func (a *App) commands() map[services.Action]*cobra.Command {
	return map[services.Action]*cobra.Command{
		services.ActionAdd:           a.addCommand(),
		services.ActionLoad:          a.listCommand(),
		services.ActionClearAll:      a.clearCommand(),
		services.ActionDeleteOne:     a.deleteCommand(),
		services.ActionPieChart:      a.pieCommand(),
		services.ActionMonthlyReport: a.reportCommand(),
		services.ActionExport:        a.exportCommand(),
	}
}

// open loads the configuration with flag overrides and opens the backend.
func (a *App) open(cmd *cobra.Command, _ []string) error {
	if _, ok := cmd.Annotations[actionAnnotation]; !ok {
		// help, completion
		return nil
	}

	cfg, err := LoadConfig(a.v.GetString("config_file"), func(c *config.Config) {
		override := func(key string, dst *string) {
			if v := strings.TrimSpace(a.v.GetString(key)); v != "" {
				*dst = v
			}
		}
		override("expenses_file", &c.ExpensesFile)
		override("data_backend", &c.DataBackend)
		override("sqlite_db_path", &c.SQLiteDBPath)
	})
	if err != nil {
		return err
	}

	level := "warn"
	if a.v.GetBool("verbose") {
		level = cfg.LogLevel
	}
	a.logger = SetupLogger(a.errOut, level).WithComponent(log.ComponentCLI)
	a.logger.Debug("Running command",
		log.FieldAction, cmd.Annotations[actionAnnotation],
		log.FieldBackend, cfg.DataBackend)

	svc, err := OpenService(cmd.Context(), a.logger, cfg)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.svc = svc
	return nil
}

func (a *App) close() error {
	if a.svc == nil {
		return nil
	}
	err := a.svc.Close()
	a.svc = nil
	return err
}

func (a *App) currency() string {
	return a.cfg.CurrencySymbol
}

// confirm asks a yes/no question on the input stream unless --yes is set.
// Anything but y or yes is a no.
func (a *App) confirm(question string) bool {
	if a.v.GetBool("yes") {
		return true
	}
	fmt.Fprintf(a.out, "%s [y/N]: ", question)
	answer, _ := bufio.NewReader(a.in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// prompt reads one trimmed line from the input stream.
func (a *App) prompt(question string) string {
	fmt.Fprint(a.out, question)
	answer, _ := bufio.NewReader(a.in).ReadString('\n')
	return strings.TrimSpace(answer)
}

// fields pads positional arguments to date, category, amount, note.
func fields(args []string) [4]string {
	var f [4]string
	copy(f[:], args)
	return f
}

func (a *App) addCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "add DATE CATEGORY AMOUNT [NOTE]",
		Short:   "Add an expense",
		Example: `  spendlog-cli add 2024-01-31 Food 12.50 "team lunch"`,
		Args:    cobra.MaximumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := fields(args)
			if _, err := a.svc.Add(cmd.Context(), f[0], f[1], f[2], f[3]); err != nil {
				return err
			}
			fmt.Fprintln(a.out, core.MsgAdded)
			return nil
		},
	}
}

func (a *App) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every expense and the total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listing, err := a.svc.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(listing.Expenses) == 0 {
				fmt.Fprintln(a.out, "No expenses recorded yet.")
			} else {
				tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tDate\tCategory\tAmount\tNote")
				for i, e := range listing.Expenses {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, e.Date, e.Category, e.Amount, e.Note)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			fmt.Fprintln(a.out, core.TotalLine(a.currency(), listing.Total))
			return nil
		},
	}
}

func (a *App) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.confirm(core.MsgConfirmClear) {
				fmt.Fprintln(a.out, "Cancelled.")
				return nil
			}
			if err := a.svc.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, core.MsgCleared)
			return nil
		},
	}
}

func (a *App) deleteCommand() *cobra.Command {
	var row int
	cmd := &cobra.Command{
		Use:   "delete [DATE CATEGORY AMOUNT [NOTE]]",
		Short: "Delete one expense",
		Long: `Delete the first stored expense equal to the selection. Select it
either by its number in "list" (--row) or by giving all of its fields.`,
		Example: `  spendlog-cli delete --row 2
  spendlog-cli delete 2024-01-02 Food 5`,
		Args: cobra.MaximumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			selected, err := a.selection(ctx, row, args)
			if err != nil {
				return err
			}
			if selected == (core.Expense{}) {
				return core.ErrNoSelection
			}
			if !a.confirm(core.MsgConfirmDelete) {
				fmt.Fprintln(a.out, "Cancelled.")
				return nil
			}
			if err := a.svc.Delete(ctx, selected); err != nil {
				return err
			}
			fmt.Fprintln(a.out, core.MsgDeleted)
			return nil
		},
	}
	cmd.Flags().IntVar(&row, "row", 0, "row number as printed by list")
	return cmd
}

// selection resolves the delete target from --row or the field arguments.
func (a *App) selection(ctx context.Context, row int, args []string) (core.Expense, error) {
	if row > 0 && len(args) > 0 {
		return core.Expense{}, errors.New("use either --row or the expense fields, not both")
	}
	if row <= 0 {
		f := fields(args)
		return core.Expense{Date: f[0], Category: f[1], Amount: f[2], Note: f[3]}, nil
	}
	listing, err := a.svc.List(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	if row > len(listing.Expenses) {
		return core.Expense{}, core.ErrNotFound
	}
	return listing.Expenses[row-1], nil
}

func (a *App) pieCommand() *cobra.Command {
	var svgPath string
	cmd := &cobra.Command{
		Use:   "pie",
		Short: "Show the expense distribution by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var slices []chart.Slice
			totals, err := a.svc.CategoryTotals(cmd.Context())
			if err == nil {
				slices, err = chart.Pie(totals)
			}
			if errors.Is(err, core.ErrNoData) {
				fmt.Fprintln(a.out, core.MsgNoChartData)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, chart.DefaultTitle)
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "Category\tAmount\tShare\t")
			for _, s := range slices {
				fmt.Fprintf(tw, "%s\t%s\t%s\t\n", s.Name, core.FormatAmount(a.currency(), s.Amount), s.Label())
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if svgPath != "" {
				if err := writeSVG(svgPath, slices); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Chart written to %s\n", svgPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&svgPath, "svg", "", "also write the chart as an SVG file")
	return cmd
}

func writeSVG(path string, slices []chart.Slice) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if err := chart.RenderSVG(f, chart.DefaultTitle, slices); err != nil {
		f.Close()
		return fmt.Errorf("render chart: %w", err)
	}
	return f.Close()
}

func (a *App) reportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report [YYYY-MM]",
		Short: "Show the expenses of one month",
		Long: `Show the expenses of one month and their total. Without an argument
the month is asked for; an empty answer cancels.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 {
				raw = args[0]
			} else {
				raw = a.prompt("Enter month (YYYY-MM): ")
			}
			if strings.TrimSpace(raw) == "" {
				return nil
			}
			month, err := core.ParseMonth(raw)
			if err != nil {
				return err
			}

			report, err := a.svc.MonthlyReport(cmd.Context(), month)
			if errors.Is(err, core.ErrNoData) {
				fmt.Fprintln(a.out, core.NoMonthData(month))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, report.Text(a.currency()))
			return nil
		},
	}
}

func (a *App) exportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every expense as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" || output == "-" {
				return a.svc.Export(cmd.Context(), a.out)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := a.svc.Export(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
