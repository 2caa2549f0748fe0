package chat

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"

	chatstate "github.com/malonaz/madlen/internal/chat"
	"github.com/malonaz/madlen/internal/cli"
	"github.com/malonaz/madlen/internal/image"
	"github.com/malonaz/madlen/internal/types"
)

const (
	imageDirective = "/image "
	modelDirective = "/model "
	newDirective   = "/new"
)

// runPlain runs a line based chat loop.
func runPlain(ctx context.Context, state *chatstate.State, historyFile string, stream bool) error {
	cli.Title("MADLEN CHAT")
	if err := state.Initialize(ctx); err != nil {
		return errors.New(chatstate.Describe(err))
	}
	snapshot := state.Snapshot()
	if model := snapshot.SelectedModel(); model != nil {
		cli.Info("model: %s\n", model.Label())
	}
	cli.Info("ctrl+j sends, `/image <path|url>` attaches an image, `/model <id>` switches model, `/new` starts a new chat\n")

	for {
		cli.Separator()
		input, err := cli.PromptUser(historyFile)
		if errors.Is(err, cli.ErrInterrupt) {
			return nil
		}
		if err != nil {
			return err
		}

		text, images, err := parseInput(ctx, state, input)
		if err != nil {
			cli.Error(chatstate.Describe(err))
			continue
		}
		if text == "" && len(images) == 0 {
			continue
		}
		if err := send(ctx, state, text, images, stream); err != nil {
			cli.Error(chatstate.Describe(err))
			state.ClearError()
		}
	}
}

// parseInput extracts directives from the input and returns the message to send.
func parseInput(ctx context.Context, state *chatstate.State, input string) (string, []types.ImageContent, error) {
	var lines []string
	var images []types.ImageContent
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, imageDirective):
			content, _, err := image.Resolve(ctx, strings.TrimPrefix(trimmed, imageDirective))
			if err != nil {
				return "", nil, err
			}
			images = append(images, content)
		case strings.HasPrefix(trimmed, modelDirective):
			modelID := strings.TrimSpace(strings.TrimPrefix(trimmed, modelDirective))
			if err := state.SelectModel(modelID); err != nil {
				return "", nil, errors.Wrapf(err, "selecting model %q", modelID)
			}
			cli.Info("model: %s\n", modelID)
		case trimmed == newDirective:
			if err := state.SelectChat(""); err != nil {
				return "", nil, err
			}
			cli.Info("new chat\n")
		default:
			lines = append(lines, line)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), images, nil
}

// send a message. Ctrl+c cancels the request without leaving the loop.
func send(ctx context.Context, state *chatstate.State, text string, images []types.ImageContent, stream bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if stream {
		_, err := state.StreamMessage(ctx, text, images, func(fragment string) {
			cli.AssistantOutput(fragment)
		})
		cli.AssistantOutput("\n")
		return err
	}

	message, err := state.SendMessage(ctx, text, images)
	if err != nil || message == nil {
		return err
	}
	cli.AssistantOutput(message.Content + "\n")
	return nil
}
