// Package process supervises long-lived external programs.
//
// A Supervisor owns exactly one OS process at a time:
//   - Start launches it in its own process group and waits a short grace
//     window, so a binary that dies on startup is reported as
//     ImmediateExit instead of silently looking "started"
//   - IsRunning is a non-blocking liveness probe suitable for watchdogs
//   - Stop sends SIGINT to the group, waits, then SIGKILLs; it is idempotent
//
// Output either stays attached to the host console (OutputInherit) or is
// split into lines, graded by a LogParser and written to a module logger
// (OutputLog). RunCaptured covers short helper invocations whose merged
// output needs to be inspected line by line.
//
//	renderer := process.NewSupervisor("renderer", logger)
//	if err := renderer.Start(ctx, process.Spec{
//	    Command: "python",
//	    Args:    []string{"run.py", "--scene", scene, "--gui"},
//	    Dir:     "/opt/ngp",
//	    Output:  process.OutputInherit,
//	}); err != nil {
//	    var se *process.StartError
//	    if errors.As(err, &se) && se.Kind == process.ErrImmediateExit {
//	        logger.Error("Renderer died on startup", "exit_code", se.ExitCode)
//	    }
//	}
//	defer renderer.Stop(5 * time.Second)
package process
