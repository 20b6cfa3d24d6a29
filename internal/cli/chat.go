package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/architect/internal/domain/conversation"
)

var chatAutoPlan bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Describe a project interactively until it is understood",
	Long: `Starts a conversation that asks clarifying questions and tracks how well
the project is understood. Once understanding reaches the configured
threshold, /plan runs the three planning stages on what was gathered.

Commands:
  /status  show understanding per dimension
  /plan    plan from the gathered requirements
  /reset   start the conversation over
  /quit    leave`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatAutoPlan, "plan", false, "plan automatically once understanding is sufficient")
	rootCmd.AddCommand(chatCmd)
}

// chatSession is one interactive conversation.
type chatSession struct {
	app       *app
	out       io.Writer
	state     conversation.Context
	lastReply string
	said      []string
	announced bool
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	cs := &chatSession{app: a, out: cmd.OutOrStdout(), state: conversation.NewContext()}
	fmt.Fprintln(cs.out, "Describe the project you want to build. /quit to leave.")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(cs.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(cs.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/status":
			cs.printStatus()
			continue
		case "/reset":
			cs.reset()
			fmt.Fprintln(cs.out, "Conversation reset.")
			continue
		case "/plan":
			return cs.plan(ctx, cmd)
		}

		if err := cs.turn(ctx, line); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Warn("Turn failed", "error", err)
			fmt.Fprintf(cs.out, "error: %v\n", err)
			continue
		}

		if cs.app.gate.Ready(cs.state) && !cs.announced {
			cs.announced = true
			if chatAutoPlan {
				return cs.plan(ctx, cmd)
			}
			fmt.Fprintln(cs.out, "I have enough to plan the project. Type /plan to continue or keep refining.")
		}
	}
}

// turn sends the user's line, with the previous reply for continuity. A
// failed turn leaves the conversation unchanged.
func (cs *chatSession) turn(ctx context.Context, line string) error {
	var msgs []conversation.Message
	if cs.lastReply != "" {
		msgs = append(msgs, conversation.Message{Role: "assistant", Content: cs.lastReply})
	}
	msgs = append(msgs, conversation.Message{Role: "user", Content: line})

	r, err := cs.app.engine.Advance(ctx, msgs, cs.state)
	if err != nil {
		return err
	}

	cs.state.Apply(r)
	cs.lastReply = r.ResponseText
	cs.said = append(cs.said, line)

	fmt.Fprintf(cs.out, "\n%s\n\n[understanding %d%%, phase %s]\n", r.ResponseText, cs.state.OverallUnderstanding, cs.state.Phase)
	return nil
}

func (cs *chatSession) printStatus() {
	m := cs.state.Understanding
	fmt.Fprintf(cs.out, "phase:         %s\n", cs.state.Phase)
	fmt.Fprintf(cs.out, "overall:       %d%% (ready at %d%%)\n", cs.state.OverallUnderstanding, cs.app.gate.Threshold)
	fmt.Fprintf(cs.out, "core concept:  %d\n", m.CoreConcept)
	fmt.Fprintf(cs.out, "requirements:  %d\n", m.Requirements)
	fmt.Fprintf(cs.out, "technical:     %d\n", m.Technical)
	fmt.Fprintf(cs.out, "constraints:   %d\n", m.Constraints)
	fmt.Fprintf(cs.out, "user context:  %d\n", m.UserContext)
	if missing := cs.app.gate.Missing(cs.state); len(missing) > 0 {
		fmt.Fprintf(cs.out, "needs work:    %s\n", strings.Join(missing, ", "))
	}
	fmt.Fprintf(cs.out, "gathered:      %d requirements, %d technical details\n",
		len(cs.state.ExtractedInfo.Requirements), len(cs.state.ExtractedInfo.TechnicalDetails))
}

func (cs *chatSession) reset() {
	cs.state.Reset()
	cs.lastReply = ""
	cs.said = nil
	cs.announced = false
}

// requirements is what the planning stages receive: the extracted facts, or
// what the user typed when nothing was extracted.
func (cs *chatSession) requirements() []string {
	info := cs.state.ExtractedInfo
	reqs := append([]string(nil), info.Requirements...)
	for _, d := range info.TechnicalDetails {
		reqs = append(reqs, "Technical: "+d)
	}
	if len(info.Requirements) == 0 {
		reqs = append(reqs, cs.said...)
	}
	return reqs
}

func (cs *chatSession) plan(ctx context.Context, cmd *cobra.Command) error {
	reqs := cs.requirements()
	if len(reqs) == 0 {
		return errors.New("nothing to plan yet: describe the project first")
	}

	fmt.Fprintf(cs.out, "Planning from %d requirements...\n", len(reqs))
	s, err := cs.app.orchestrator.Run(ctx, reqs)
	return finish(cmd, cs.app, s, err)
}
