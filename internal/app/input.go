package app

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
)

// errQuit is returned by the quit command to end an interactive session.
var errQuit = errors.New("quit requested")

// CommandCallback is a function called when a command is entered
type CommandCallback func() error

// InputHandler dispatches line commands read from an interactive input.
type InputHandler struct {
	callbacks map[string]CommandCallback
	logger    *zap.Logger
}

func NewInputHandler(logger *zap.Logger) *InputHandler {
	return &InputHandler{
		callbacks: make(map[string]CommandCallback),
		logger:    logger.Named("input"),
	}
}

// RegisterCommand registers a callback for a command. The empty command is a
// bare Enter.
func (ih *InputHandler) RegisterCommand(command string, callback CommandCallback) {
	ih.callbacks[command] = callback
}

// Run reads commands from r until ctx ends or a callback fails. When r is
// exhausted the handler stops reading but keeps waiting for ctx, so a
// detached stdin does not end the session.
func (ih *InputHandler) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			ih.logger.Error("Error reading input", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				ih.logger.Debug("Input closed")
				lines = nil
				continue
			}
			if err := ih.dispatch(strings.TrimSpace(line)); err != nil {
				return err
			}
		}
	}
}

func (ih *InputHandler) dispatch(command string) error {
	callback, ok := ih.callbacks[strings.ToLower(command)]
	if !ok {
		ih.logger.Info("Unknown command. Press Enter to refresh, 'r' to reload positions or 'q' to exit.",
			zap.String("command", command))
		return nil
	}
	err := callback()
	if err != nil && !errors.Is(err, errQuit) {
		ih.logger.Error("Error executing command", zap.String("command", command), zap.Error(err))
		return nil
	}
	return err
}
