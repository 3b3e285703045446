package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/notify"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/readiness"
)

// errBlocked is returned when at least one stage is blocked. It carries no
// message because the report has already been printed.
var errBlocked = errors.New("pipeline blocked")

func newValidateCommand(clip notify.Clipboard) *cobra.Command {
	var copyReport bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "validate <state.json>",
		Short: "Print the verdict of every pipeline stage",
		Long: "Reads a pipeline state, either bare or wrapped in a session response, " +
			"and prints whether each stream render, layer blend and the master blend may run.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := loadState(args[0])
			if err != nil {
				return err
			}
			report := readiness.Evaluate(state)

			var text string
			if jsonOutput {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
				text = string(data) + "\n"
			} else {
				text = renderReport(report)
			}
			fmt.Fprint(cmd.OutOrStdout(), text)

			announce(cmd.ErrOrStderr(), report)

			if copyReport {
				if err := clip.Copy(text); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "i Report copied to clipboard")
			}

			if report.Blocked() {
				return errBlocked
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&copyReport, "copy", false, "Copy the report to the system clipboard")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	return cmd
}

// loadState reads a PipelineState or a {"state": ...} session document
func loadState(path string) (model.PipelineState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.PipelineState{}, fmt.Errorf("read state: %w", err)
	}

	var doc struct {
		State *model.PipelineState `json:"state"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.PipelineState{}, fmt.Errorf("parse state %s: %w", path, err)
	}
	if doc.State != nil {
		return *doc.State, nil
	}

	var state model.PipelineState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.PipelineState{}, fmt.Errorf("parse state %s: %w", path, err)
	}
	return state, nil
}

type stageLine struct {
	label   string
	verdict model.Verdict
}

func stageLines(report readiness.Report) []stageLine {
	var lines []stageLine
	for _, layer := range report.Layers {
		for _, stream := range layer.Streams {
			lines = append(lines, stageLine{
				label:   fmt.Sprintf("%s / Stream %s", layer.Title, stream.Tag),
				verdict: stream.Verdict,
			})
		}
		lines = append(lines, stageLine{label: layer.Title + " / blend", verdict: layer.Blend.Verdict})
	}
	return append(lines, stageLine{label: "Master", verdict: report.Master.Verdict})
}

func renderReport(report readiness.Report) string {
	var rows [][]string
	for _, line := range stageLines(report) {
		if line.verdict.IsReady() {
			rows = append(rows, []string{line.label, "ready"})
			continue
		}
		reasons := line.verdict.Reasons()
		for i, reason := range reasons {
			reasons[i] = "- " + reason
		}
		rows = append(rows, []string{line.label, "blocked", strings.Join(reasons, "\n")})
	}
	return renderTable([]string{"Stage", "Verdict", "Reasons"}, rows)
}

// announce posts one message per blocked stage to a notification center and
// waits until the console has shown every accepted message
func announce(w io.Writer, report readiness.Report) {
	lines := stageLines(report)
	center := notify.NewCenter()
	toaster := newConsoleToaster(w, len(lines))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := center.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		notify.Forward(sub, toaster)
		close(done)
	}()

	accepted := 0
	for _, line := range lines {
		if line.verdict.IsReady() {
			continue
		}
		text := line.label + ": " + strings.Join(line.verdict.Reasons(), "\n")
		if center.Post(text, true) {
			accepted++
		}
	}
	for i := 0; i < accepted; i++ {
		<-toaster.shown
	}
	cancel()
	<-done
}
