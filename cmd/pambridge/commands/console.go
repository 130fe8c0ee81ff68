package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/marmos91/pambridge/pkg/pam"
	"github.com/marmos91/pambridge/pkg/pam/pamtest"
)

// consoleHandle is a pam.Handle whose conversation talks to the local
// terminal. Items, environment and data live in memory; only prompts
// reach the user.
type consoleHandle struct {
	*pamtest.FakeHandle
	stdin *bufio.Reader
}

func newConsoleHandle() *consoleHandle {
	return &consoleHandle{
		FakeHandle: pamtest.NewFakeHandle(),
		stdin:      bufio.NewReader(os.Stdin),
	}
}

// Prompt implements the conversation on the terminal. Echo-off prompts
// use the terminal's password mode when stdin is one.
func (h *consoleHandle) Prompt(style pam.Style, msg string) (string, error) {
	switch style {
	case pam.PromptEchoOff:
		fmt.Fprint(os.Stderr, msg)
		if term.IsTerminal(int(os.Stdin.Fd())) {
			response, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", pam.ConvErr
			}
			return string(response), nil
		}
		return h.readLine()

	case pam.PromptEchoOn:
		fmt.Fprint(os.Stderr, msg)
		return h.readLine()

	case pam.ErrorMsg:
		fmt.Fprintln(os.Stderr, msg)
		return "", nil

	case pam.TextInfo:
		fmt.Println(msg)
		return "", nil

	default:
		return "", pam.ConvErr
	}
}

func (h *consoleHandle) readLine() (string, error) {
	line, err := h.stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", pam.ConvErr
	}
	return strings.TrimRight(line, "\n"), nil
}
