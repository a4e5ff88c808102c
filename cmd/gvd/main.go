// gvd is the game-catalog coordination daemon: a partitioned, replicated
// write coordinator over one master and two slave MySQL nodes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gamevault/gamevault/internal/debug"
)

var (
	// Version is set at build time via -ldflags.
	Version = "dev"

	cfgPath     string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "gvd",
	Short: "gvd - partitioned game-catalog write coordinator",
	Long: `gvd coordinates catalog writes across a master and two slave MySQL
nodes. Windows-only games replicate to slave_a, multi-platform games to
slave_b; records that cannot reach their slave are parked on the master
and synced in the background.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseFlag {
			debug.SetVerbose(true)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("gvd version %s\n", Version)
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to YAML config (default: built-in defaults + GV_* env)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
