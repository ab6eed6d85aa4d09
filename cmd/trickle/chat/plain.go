package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/trickle/pkg/cliui"
	"github.com/papercomputeco/trickle/pkg/client"
	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/stream"
	"github.com/papercomputeco/trickle/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

// resumePreview is how many restored turns are echoed on start.
const resumePreview = 4

func (c *chatCommander) runPlain(ctx context.Context, opts []client.Option) error {
	var (
		mu      sync.Mutex
		printed int
	)
	observer := conversation.Observer{
		OnTurn: func(t conversation.Turn) {
			if t.Role != conversation.RoleAssistant {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if len(t.Content) > printed {
				fmt.Fprint(c.out, t.Content[printed:])
				printed = len(t.Content)
			}
		},
		OnRetry: func(attempt int, _ time.Duration, err error) {
			fmt.Fprintf(c.errOut, "\n  %s %s\n",
				cliui.WarnStyle.Render("↻"),
				cliui.DimStyle.Render(fmt.Sprintf("reconnecting (attempt %d): %v", attempt, err)),
			)
		},
	}

	cl, err := client.New(ctx, c.settings, append(opts,
		client.WithLogger(c.logger),
		client.WithObserver(observer),
	)...)
	if err != nil {
		return err
	}
	defer cl.Close()

	c.printBanner(cl)

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		mu.Lock()
		printed = 0
		mu.Unlock()

		fmt.Fprint(c.out, assistantPrompt)
		if err := c.sendAndStream(ctx, cl, input); err != nil {
			fmt.Fprintf(c.errOut, "\n  %s %v\n", cliui.FailMark, err)
		}
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

func (c *chatCommander) printBanner(cl *client.Client) {
	turns := cl.History().Turns()

	fmt.Fprintln(c.out)
	if len(turns) > 0 {
		fmt.Fprintf(c.out, "  %s Resuming conversation %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d turns)", len(turns))),
		)
		start := max(len(turns)-resumePreview, 0)
		for _, t := range turns[start:] {
			label := userPrompt
			if t.Role == conversation.RoleAssistant {
				label = assistantPrompt
			}
			fmt.Fprintf(c.out, "  %s%s\n", label, cliui.DimStyle.Render(utils.Truncate(utils.OneLine(t.Content), 72)))
		}
	} else {
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	fmt.Fprintf(c.out, "  %s\n\n", cliui.KeyValue("Endpoint:", c.settings.Endpoint))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. Ctrl+C stops a reply. /exit or Ctrl+D to quit."))
}

// sendAndStream sends input and blocks until the reply is finalized. An
// interrupt while streaming stops the reply instead of the process.
func (c *chatCommander) sendAndStream(ctx context.Context, cl *client.Client, input string) error {
	if err := cl.Send(ctx, input); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	done := cl.Done()
	go func() {
		select {
		case <-sig:
			cl.Stop()
		case <-done:
		}
	}()

	err := cl.Wait(context.Background())
	if errors.Is(err, stream.ErrAborted) {
		fmt.Fprintf(c.out, " %s", cliui.WarnStyle.Render("[stopped]"))
		return nil
	}
	return err
}
