package row

import (
	"os"

	"github.com/ValentinKolb/dPS/cmd/util"
	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/rpc/client"
	"github.com/ValentinKolb/dPS/rpc/serializer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	agent  *client.Agent
	layout *partition.Layout

	// RowCommands represents the worker command group
	RowCommands = &cobra.Command{
		Use:                "row",
		Short:              "Push and pull matrix rows as a worker",
		PersistentPreRunE:  setupAgent,
		PersistentPostRunE: closeAgent,
	}
)

func init() {
	// Add common RPC flags to the row commands
	util.SetupRPCClientFlags(RowCommands)

	RowCommands.PersistentFlags().Int32("matrix", -1, util.WrapString("ID of the matrix to access, -1 uses matrix-id"))
	RowCommands.PersistentFlags().Bool("stats", false, util.WrapString("Print request timings of the agent after the command"))

	// Add subcommands
	RowCommands.AddCommand(pushCmd)
	RowCommands.AddCommand(pullCmd)
	RowCommands.AddCommand(featsCmd)
	RowCommands.AddCommand(checkpointCmd)
	RowCommands.AddCommand(perfTestCmd)
}

// setupAgent connects the agent to the parameter servers
func setupAgent(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	layout, err = util.GetLayout()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	agent, err = client.NewAgent(
		layout,
		*util.GetClientConfig(),
		t,
		serializer.NewBinarySerializer(),
	)
	return err
}

// closeAgent prints the agent timings if requested and closes the transport
func closeAgent(_ *cobra.Command, _ []string) error {
	if agent == nil {
		return nil
	}
	if viper.GetBool("stats") {
		agent.WriteStats(os.Stdout)
	}
	return agent.Close()
}

// matrixID returns the matrix the commands operate on
func matrixID() int32 {
	if id := viper.GetInt32("matrix"); id >= 0 {
		return id
	}
	return viper.GetInt32("matrix-id")
}
