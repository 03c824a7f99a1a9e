package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/probes"
)

// One subcommand per registered check type, e.g.
//
//	healthmon disk-space --path /var --warning 80
//
// Flags mirror the type's arguments. Only flags given on the command line are
// passed on, so the check type's own defaults apply to the rest.
func init() {
	for _, desc := range probes.GetAllDescriptions() {
		rootCmd.AddCommand(probeCommand(desc))
	}
}

func probeCommand(desc probe.Description) *cobra.Command {
	typ := desc.Name
	cmd := &cobra.Command{
		Use:     typ,
		Short:   desc.Description,
		GroupID: probeGroupID,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			checkArgs := flagArgs(cmd, desc)
			check, err := probes.Build(typ, name, checkArgs, probe.DefaultEnv())
			if err != nil {
				return err
			}
			opts := batchOptions(cmd)
			// A check's own timeout argument shadows the global --timeout.
			if d, ok := argTimeout(checkArgs); ok && d+timeoutGrace > opts.CheckTimeout {
				opts.CheckTimeout = d + timeoutGrace
			}
			return runChecks(cmd, []probe.Check{check}, opts)
		},
	}
	cmd.Flags().String("name", typ, "Check name shown in the report")

	for _, arg := range sortedArgs(desc.Arguments.Required) {
		addArgFlag(cmd, arg, desc.Arguments.Required[arg])
		cmd.MarkFlagRequired(arg)
	}
	for _, arg := range sortedArgs(desc.Arguments.Optional) {
		addArgFlag(cmd, arg, desc.Arguments.Optional[arg])
	}
	return cmd
}

func addArgFlag(cmd *cobra.Command, name string, spec probe.ArgumentSpec) {
	// Map arguments are only settable from a config file.
	if spec.Type == "map" {
		return
	}
	usage := spec.Description
	if len(spec.Enum) > 0 {
		usage += " (" + strings.Join(spec.Enum, ", ") + ")"
	}
	if spec.Type == "boolean" {
		def, _ := spec.Default.(bool)
		cmd.Flags().Bool(name, def, usage)
		return
	}
	def := ""
	if spec.Default != nil {
		def = fmt.Sprint(spec.Default)
	}
	cmd.Flags().String(name, def, usage)
}

// flagArgs collects the argument flags set on the command line.
func flagArgs(cmd *cobra.Command, desc probe.Description) map[string]any {
	args := map[string]any{}
	collect := func(specs map[string]probe.ArgumentSpec) {
		for name, spec := range specs {
			if !cmd.Flags().Changed(name) {
				continue
			}
			if spec.Type == "boolean" {
				args[name], _ = cmd.Flags().GetBool(name)
			} else {
				args[name], _ = cmd.Flags().GetString(name)
			}
		}
	}
	collect(desc.Arguments.Required)
	collect(desc.Arguments.Optional)
	return args
}

// timeoutGrace lets a check report its own timeout before the runner gives
// up on it.
const timeoutGrace = 5 * time.Second

func argTimeout(args map[string]any) (time.Duration, bool) {
	raw, ok := args["timeout"].(string)
	if !ok {
		return 0, false
	}
	var cfg struct {
		Timeout time.Duration `mapstructure:"timeout"`
	}
	if err := probe.DecodeArgs(map[string]any{"timeout": raw}, &cfg); err != nil {
		return 0, false
	}
	return cfg.Timeout, true
}

func sortedArgs(specs map[string]probe.ArgumentSpec) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
