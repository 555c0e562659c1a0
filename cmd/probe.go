package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/smazurov/viewstream/internal/ffmpeg"
	"github.com/smazurov/viewstream/internal/process"
)

// ProbeResult is what the probe command found on this host.
type ProbeResult struct {
	FFmpeg   ToolStatus       `toml:"ffmpeg"`
	Xdotool  ToolStatus       `toml:"xdotool"`
	Renderer ToolStatus       `toml:"renderer"`
	Encoders []ffmpeg.Encoder `toml:"encoders"`
	Selected string           `toml:"selected_encoder"`
}

// ToolStatus reports one external dependency.
type ToolStatus struct {
	Command string `toml:"command"`
	Found   bool   `toml:"found"`
	Version string `toml:"version,omitempty"`
	Error   string `toml:"error,omitempty"`
}

// CreateProbeCmd creates the probe command, which checks the host for the
// programs a session launches.
func CreateProbeCmd() *cobra.Command {
	flags := DefaultSessionFlags()
	var outputFile string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check ffmpeg, xdotool and the renderer",
		Long:  `Lists the H.264 encoders ffmpeg offers, picks the one a session would use and checks that xdotool and the renderer can be found.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			res := probe(ctx, flags)
			printProbe(cmd.OutOrStdout(), res)

			if outputFile != "" {
				data, err := toml.Marshal(res)
				if err != nil {
					return err
				}
				if err := os.WriteFile(outputFile, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nResults written to %s\n", outputFile)
			}
			if !res.FFmpeg.Found || res.Selected == "" {
				return fmt.Errorf("no usable H.264 encoder")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write results as TOML")
	flags.Register(cmd)
	return cmd
}

func probe(ctx context.Context, flags SessionFlags) ProbeResult {
	res := ProbeResult{
		FFmpeg:  toolVersion(ctx, flags.EncoderBinary, "-hide_banner", "-version"),
		Xdotool: toolVersion(ctx, flags.XdotoolBinary, "version"),
	}

	if res.FFmpeg.Found {
		encoders, err := ffmpeg.ListEncoders(ctx, flags.EncoderBinary)
		if err != nil {
			res.FFmpeg.Error = err.Error()
		}
		res.Encoders = encoders
		res.Selected = ffmpeg.SelectEncoder(encoders, nil)
	}

	argv, err := process.ParseCommand(flags.RendererCommand)
	switch {
	case err != nil:
		res.Renderer = ToolStatus{Command: flags.RendererCommand, Error: err.Error()}
	case len(argv) == 0:
		res.Renderer = ToolStatus{Error: "empty renderer command"}
	default:
		res.Renderer = toolVersion(ctx, argv[0], "--version")
	}
	return res
}

func toolVersion(ctx context.Context, command string, args ...string) ToolStatus {
	st := ToolStatus{Command: command}
	out, err := process.RunCaptured(ctx, process.Spec{Command: command, Args: args}, nil)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Found = true
	if len(out.Lines) > 0 {
		st.Version = out.Lines[0]
	}
	return st
}

func printProbe(w io.Writer, res ProbeResult) {
	for _, t := range []struct {
		name string
		st   ToolStatus
	}{{"ffmpeg", res.FFmpeg}, {"xdotool", res.Xdotool}, {"renderer", res.Renderer}} {
		switch {
		case t.st.Found:
			fmt.Fprintf(w, "✓ %-9s %s\n", t.name, t.st.Version)
		default:
			fmt.Fprintf(w, "✗ %-9s %s\n", t.name, t.st.Error)
		}
	}

	fmt.Fprintf(w, "\nEncoders (%d):\n", len(res.Encoders))
	for _, e := range res.Encoders {
		hw := ""
		if e.HWAccel {
			hw = " [hw]"
		}
		fmt.Fprintf(w, "  %-16s %s%s\n", e.Name, e.Description, hw)
	}
	if res.Selected != "" {
		fmt.Fprintf(w, "\nSelected encoder: %s\n", res.Selected)
	} else {
		fmt.Fprintln(w, "\nSelected encoder: none")
	}
}
