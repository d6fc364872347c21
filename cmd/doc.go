// Package cmd implements the command-line interface of dPS. It provides a
// hierarchical command structure with operations for running parameter
// servers and interacting with them as a worker.
//
// The package is organized into several subpackages:
//
//   - row: Worker commands (push, pull, feats, checkpoint, perf)
//   - serve: Starts the parameter servers of one node
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set with an environment variable of the form
// DPS_<FLAG> (e.g. DPS_MATRIX_COLS=4096). See dps -help for a list of all commands.
package cmd
