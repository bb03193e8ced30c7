// Command fsnow is the CLI entry point: serve runs the HTTP wire adapter,
// repl opens an interactive session, and exec runs a single statement.
// It uses cobra for subcommands the way the teacher's cmd/smf does.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fsnow/internal/client"
	"fsnow/internal/config"
	"fsnow/internal/resultmeta"
	"fsnow/internal/wire"
)

func httpListenAndServe(addr string, srv *wire.Server) error {
	return http.ListenAndServe(addr, srv)
}

var (
	cfgFile  string
	database string
	schema   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fsnow",
		Short: "In-process emulator for a cloud-warehouse SQL dialect",
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a TOML connection profile")
	rootCmd.PersistentFlags().StringVar(&database, "database", "", "database to USE on connect")
	rootCmd.PersistentFlags().StringVar(&schema, "schema", "", "schema to USE on connect")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(replCmd())
	rootCmd.AddCommand(execCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadProfile() (config.Profile, error) {
	prof, err := config.Load(cfgFile, viper.New())
	if err != nil {
		return prof, fmt.Errorf("loading config: %w", err)
	}
	if database != "" {
		prof.Database = database
	}
	if schema != "" {
		prof.Schema = schema
	}
	return prof, nil
}

func clientOptions(prof config.Profile, log *logrus.Logger) client.Options {
	return client.Options{
		Database:   prof.Database,
		Schema:     prof.Schema,
		DBPath:     prof.DBPath,
		StageRoot:  prof.StageRoot,
		ParamStyle: prof.ParamStyle,
		NopRegexes: prof.NopRegexes,
		Logger:     log,
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP login/query wire adapter",
		RunE: func(_ *cobra.Command, _ []string) error {
			prof, err := loadProfile()
			if err != nil {
				return err
			}
			log := logrus.StandardLogger()
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			srv := wire.New([]byte(prof.JWTSecret), clientOptions(prof, log), log)
			log.WithField("addr", prof.ListenAddr).Info("fsnow wire adapter listening")
			return httpListenAndServe(prof.ListenAddr, srv)
		},
	}
}

func execCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute one statement and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			prof, err := loadProfile()
			if err != nil {
				return err
			}
			ctx := context.Background()
			conn, err := client.Connect(ctx, clientOptions(prof, logrus.StandardLogger()))
			if err != nil {
				return err
			}
			cur := conn.Cursor()
			if err := cur.Execute(ctx, args[0]); err != nil {
				return err
			}
			printResult(cur)
			return nil
		},
	}
	return cmd
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		RunE: func(_ *cobra.Command, _ []string) error {
			prof, err := loadProfile()
			if err != nil {
				return err
			}
			return runRepl(prof)
		},
	}
}

func runRepl(prof config.Profile) error {
	ctx := context.Background()
	conn, err := client.Connect(ctx, clientOptions(prof, logrus.StandardLogger()))
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptFor(prof),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				buf.Reset()
				continue
			}
			return nil // io.EOF
		}
		buf.WriteString(line)
		buf.WriteString("\n")
		trimmed := strings.TrimSpace(buf.String())
		if !strings.HasSuffix(trimmed, ";") {
			continue
		}
		sql := strings.TrimSuffix(trimmed, ";")
		buf.Reset()
		if sql == "" {
			continue
		}
		cur := conn.Cursor()
		if err := cur.Execute(ctx, sql); err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			continue
		}
		printResult(cur)
	}
}

func promptFor(prof config.Profile) string {
	db := prof.Database
	if db == "" {
		db = "(no database)"
	}
	return db + "> "
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	borderStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

// printResult renders a Cursor's last result as a lipgloss-bordered table,
// the style spec.md §9 names for the interactive REPL.
func printResult(cur *client.Cursor) {
	cols := cur.Description()
	if len(cols) == 0 {
		fmt.Println(headerStyle.Render(fmt.Sprintf("(%d rows affected)", cur.RowCount())))
		return
	}
	rows := cur.FetchAll()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	fmt.Println(borderStyle.Render(renderTable(names, cols, rows)))
}

func renderTable(names []string, cols []resultmeta.Column, rows []map[string]any) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(strings.Join(names, " | ")))
	b.WriteString("\n")
	for _, row := range rows {
		vals := make([]string, len(names))
		for i, n := range names {
			vals[i] = fmt.Sprintf("%v", row[n])
		}
		b.WriteString(strings.Join(vals, " | "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
