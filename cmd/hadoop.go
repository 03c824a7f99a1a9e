package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/probes/apihealth"
	"github.com/jandubois/healthmon/internal/probes/hadoop"
)

var hadoopCmd = &cobra.Command{
	Use:   "hadoop",
	Short: "Check Hadoop cluster health",
	Long: `Check Hadoop cluster health either with the hadoop/hdfs command line
tools (locally or over ssh) or through a JSON status API.`,
}

var hadoopCommandCmd = &cobra.Command{
	Use:   "command",
	Short: "Check Hadoop health using command-line tools",
	Args:  cobra.NoArgs,
	RunE:  runHadoopCommand,
}

var hadoopAPICmd = &cobra.Command{
	Use:   "api",
	Short: "Check Hadoop health using a JSON API",
	Args:  cobra.NoArgs,
	RunE:  runHadoopAPI,
}

// hadoopChecks maps --check values to check kinds, in report order.
var hadoopChecks = []struct {
	flag string
	kind hadoop.Kind
}{
	{"hadoop", hadoop.Health},
	{"hdfs", hadoop.Capacity},
	{"datanode", hadoop.DataNode},
	{"version", hadoop.Version},
}

func init() {
	rootCmd.AddCommand(hadoopCmd)
	hadoopCmd.AddCommand(hadoopCommandCmd)
	hadoopCmd.AddCommand(hadoopAPICmd)

	hadoopCommandCmd.Flags().String("check", "all", "Select specific checks (hadoop, hdfs, datanode, version, all)")
	hadoopCommandCmd.Flags().Float64("hdfs-warning", 90, "HDFS used percentage above which to warn")
	hadoopCommandCmd.Flags().Float64("hdfs-critical", 95, "HDFS used percentage above which to go critical")
	hadoopCommandCmd.Flags().String("ssh-host", "", "Run the commands on this host over ssh")
	hadoopCommandCmd.Flags().String("ssh-user", "", "ssh login user")
	hadoopCommandCmd.Flags().Int("ssh-port", 0, "ssh port")
	hadoopCommandCmd.Flags().Duration("command-timeout", 0, "Timeout for each hadoop/hdfs command (default: the check timeout)")

	hadoopAPICmd.Flags().String("url", "", "URL of the JSON API")
	hadoopAPICmd.Flags().Int("update-minutes", 0, "Maximum time since last update in minutes")
	hadoopAPICmd.Flags().StringSlice("required-components", nil, "Components that must be present in the response")
	hadoopAPICmd.MarkFlagRequired("url")
}

func runHadoopCommand(cmd *cobra.Command, args []string) error {
	which, _ := cmd.Flags().GetString("check")

	cfg := hadoop.DefaultConfig()
	cfg.Warning, _ = cmd.Flags().GetFloat64("hdfs-warning")
	cfg.Critical, _ = cmd.Flags().GetFloat64("hdfs-critical")
	cfg.SSHHost, _ = cmd.Flags().GetString("ssh-host")
	cfg.SSHUser, _ = cmd.Flags().GetString("ssh-user")
	cfg.SSHPort, _ = cmd.Flags().GetInt("ssh-port")
	cfg.Timeout, _ = cmd.Flags().GetDuration("command-timeout")

	env := probe.DefaultEnv()
	var checks []probe.Check
	for _, hc := range hadoopChecks {
		if which != "all" && which != hc.flag {
			continue
		}
		check, err := hadoop.New("", hc.kind, cfg, env.Executor)
		if err != nil {
			return err
		}
		checks = append(checks, check)
	}
	if len(checks) == 0 {
		return fmt.Errorf("invalid --check %q (expected hadoop, hdfs, datanode, version or all)", which)
	}
	return runChecks(cmd, checks, batchOptions(cmd))
}

func runHadoopAPI(cmd *cobra.Command, args []string) error {
	var cfg apihealth.Config
	cfg.URL, _ = cmd.Flags().GetString("url")
	cfg.UpdateMinutes, _ = cmd.Flags().GetInt("update-minutes")
	cfg.RequiredComponents, _ = cmd.Flags().GetStringSlice("required-components")

	env := probe.DefaultEnv()
	check, err := apihealth.New("", cfg, env.Fetcher, env.Now)
	if err != nil {
		return err
	}
	return runChecks(cmd, []probe.Check{check}, batchOptions(cmd))
}

