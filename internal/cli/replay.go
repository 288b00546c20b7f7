package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"activity-sync/internal/events"
	"activity-sync/internal/rabbitmq"
)

// ReplayResult is one dispatched event.
type ReplayResult struct {
	EventID string `json:"event_id"`
	Handler string `json:"handler"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	Applied int    `json:"applied"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <file|->",
		Short: "Dispatch change events from a file through the handlers",
		Long: `Read one or more JSON event envelopes from a file (or stdin with "-")
and dispatch each through the same router the consumer uses.

Handlers are idempotent, so replaying an event that was already processed
leaves the stores unchanged.

Examples:
  activity-sync replay events.json
  cat event.json | activity-sync replay - --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			app, err := NewApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer app.Close()

			results, err := replay(cmd.Context(), app.Router, in)
			if err != nil {
				return err
			}
			return printReplay(cmd.OutOrStdout(), rootOpts.Format, results)
		},
	}
}

func openInput(name string) (io.Reader, func(), error) {
	if name == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, func() { _ = f.Close() }, nil
}

// replay decodes a stream of envelopes and dispatches them in order. Handler
// failures are recorded per event; a malformed envelope stops the replay.
func replay(ctx context.Context, d rabbitmq.Dispatcher, in io.Reader) ([]ReplayResult, error) {
	dec := json.NewDecoder(in)
	var results []ReplayResult
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); errors.Is(err, io.EOF) {
			return results, nil
		} else if err != nil {
			return results, fmt.Errorf("read event %d: %w", len(results)+1, err)
		}

		ev, err := events.Decode(raw)
		if err != nil {
			return results, fmt.Errorf("event %d: %w", len(results)+1, err)
		}

		rep, err := d.Dispatch(ctx, ev)
		res := ReplayResult{
			EventID: ev.ID,
			Handler: rep.Handler,
			Outcome: rep.Outcome,
			Reason:  rep.Reason,
			Applied: rep.Applied,
			Failed:  rep.Failed,
		}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
}

func printReplay(w io.Writer, format string, results []ReplayResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		line := fmt.Sprintf("%s %s %s applied=%d failed=%d", r.EventID, r.Handler, r.Outcome, r.Applied, r.Failed)
		if r.Reason != "" {
			line += " reason=" + r.Reason
		}
		if r.Error != "" {
			line += " error=" + r.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
