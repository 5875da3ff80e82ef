package cmd

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/zjrosen/omniedit/internal/config"
	"github.com/zjrosen/omniedit/internal/syntax"
)

var syntaxCmd = &cobra.Command{
	Use:   "syntax",
	Short: "Inspect and extend the highlighting rules",
}

var syntaxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active rules in match order",
	Long: `List the active rules in the order they are tried: the builtin definition,
then syntax.file, then syntax.patterns. When two rules match at the same
position the one listed first wins.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := cfg.Syntax.Registry()
		if err != nil {
			return err
		}
		return printEntries(cmd.OutOrStdout(), reg.Entries())
	},
}

var syntaxBuiltinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "List the embedded syntax definitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, name := range syntax.BuiltinNames() {
			marker := " "
			if name == cfg.Syntax.Builtin {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
		}
		return nil
	},
}

var syntaxAddCmd = &cobra.Command{
	Use:   "add <label> <pattern>",
	Short: "Append a regular expression rule to the config",
	Long: `Append a regular expression rule to syntax.patterns in the config file.
The pattern must compile and must not match the empty string.

Examples:
  omniedit syntax add todo 'TODO|FIXME'
  omniedit syntax add number '\b\d+(\.\d+)?\b'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return addRule(cmd.OutOrStdout(), configFilePath, cfg.Syntax, syntax.Rule{Label: args[0], Pattern: args[1]})
	},
}

var syntaxTokensCmd = &cobra.Command{
	Use:   "tokens <label> <token>...",
	Short: "Append a whole-word token rule to the config",
	Long: `Append a rule matching any of the tokens as whole words. Tokens are
matched literally.

Example:
  omniedit syntax tokens keyword goto continue`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return addRule(cmd.OutOrStdout(), configFilePath, cfg.Syntax, syntax.Rule{Label: args[0], Tokens: args[1:]})
	},
}

func init() {
	rootCmd.AddCommand(syntaxCmd)
	syntaxCmd.AddCommand(syntaxListCmd, syntaxBuiltinsCmd, syntaxAddCmd, syntaxTokensCmd)
}

// addRule checks that rule registers on top of the current rules, then
// persists it to the config file.
func addRule(w io.Writer, path string, sc config.SyntaxConfig, rule syntax.Rule) error {
	if path == "" {
		return fmt.Errorf("no config file to save to")
	}

	rules := append(slices.Clone(sc.Patterns), rule)
	sc.Patterns = rules
	reg, err := sc.Registry()
	if err != nil {
		return err
	}

	if err := config.SavePatterns(path, rules); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(w, "added %s rule %d to %s\n", rule.Label, reg.Len()-1, path)
	return nil
}

func printEntries(w io.Writer, entries []syntax.Entry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{strconv.Itoa(e.Order), e.Label, e.Pattern})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ORDER", "LABEL", "PATTERN").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.String())
	return err
}
