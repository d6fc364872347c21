package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dPS/cmd/row"
	"github.com/ValentinKolb/dPS/cmd/serve"
	"github.com/ValentinKolb/dPS/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dps",
		Short: "distributed parameter server",
		Long: fmt.Sprintf(`dPS (v%s)

A parameter server written in Go. Matrices are partitioned by column
range over parameter servers, workers push sparse or dense row updates
and pull merged rows over a compact binary wire format.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dPS",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dPS v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitEnv)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(row.RowCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (http, tcp, unix)"))
	util.SetupLayoutFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
