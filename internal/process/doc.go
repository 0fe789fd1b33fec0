// Package process runs the subprocesses behind LUCID buttons.
//
// Two modes are provided:
//   - Run executes a command to completion and captures its output. Shell
//     buttons use it.
//   - Start launches a command in its own process group and returns a
//     Handle. Output is logged as it arrives. Display buttons use it, since
//     a display launcher stays open until the operator closes it.
//
// Example usage:
//
//	runner := process.NewRunner()
//	runner.SetLogger(logger.With("component", "process"))
//
//	res, err := runner.Run(ctx, process.Command{
//	    Name:   "Terminal",
//	    Binary: "/bin/sh",
//	    Args:   []string{"-c", "echo hello"},
//	})
package process
