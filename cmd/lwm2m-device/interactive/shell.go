// Package interactive provides the interactive command-line interface
// for the LwM2M device.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/service"
)

// ErrExit is returned by Run when the user leaves the shell.
var ErrExit = errors.New("shell exited")

// Service is the part of the device service the shell drives.
type Service interface {
	Do(ctx context.Context, fn func(d *model.Device) error) error
	SetResourceValue(ctx context.Context, path model.Path, value []byte) error
	Status() service.Status
}

// Shell handles interactive mode for lwm2m-device.
type Shell struct {
	rl  *readline.Instance
	out io.Writer
	svc Service
}

// New creates the readline instance. Use Stderr for log output so lines
// do not interfere with the prompt.
func New() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "lwm2m> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("list"),
			readline.PcItem("read"),
			readline.PcItem("write"),
			readline.PcItem("observe"),
			readline.PcItem("attrs"),
			readline.PcItem("status"),
			readline.PcItem("help"),
			readline.PcItem("exit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl, out: rl.Stdout()}, nil
}

// Stderr returns a writer that coordinates with the readline input.
func (sh *Shell) Stderr() io.Writer {
	return sh.rl.Stderr()
}

// Run reads commands until the user exits or ctx ends. It returns ErrExit
// when the user leaves so the caller can shut down.
func (sh *Shell) Run(ctx context.Context, svc Service) error {
	sh.svc = svc
	defer sh.rl.Close()

	// Readline blocks; closing it ends the loop on shutdown.
	go func() {
		<-ctx.Done()
		_ = sh.rl.Close()
	}()

	sh.printHelp()
	for {
		line, err := sh.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) && ctx.Err() == nil {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(sh.out, "Exiting...")
			return ErrExit
		}
		if err := sh.Exec(ctx, line); err != nil {
			return err
		}
	}
}

// Exec runs one command line.
func (sh *Shell) Exec(ctx context.Context, line string) error {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		sh.printHelp()
	case "list", "ls", "l":
		sh.cmdList(ctx, args)
	case "read", "r":
		sh.cmdRead(ctx, args)
	case "write", "w":
		sh.cmdWrite(ctx, args)
	case "observe", "o":
		sh.cmdObserve(ctx)
	case "attrs", "a":
		sh.cmdAttrs(ctx, args)
	case "status", "s":
		sh.cmdStatus()
	case "exit", "quit", "q":
		fmt.Fprintln(sh.out, "Exiting...")
		return ErrExit
	default:
		fmt.Fprintf(sh.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return nil
}

func (sh *Shell) printHelp() {
	fmt.Fprintln(sh.out, `
LwM2M Device Commands:
  Tree:
    list [path]         - Show the tree (or a subtree)
    read <path>         - Read a value
    write <path> <val>  - Set a resource value locally (notifies observers)

  Observation:
    observe             - List observed nodes
    attrs <path>        - Show the notification attributes of a node

  General:
    status              - Show connection status
    help                - Show this help
    exit                - Exit device

  Path Format:
    object/instance/resource[/instance] - e.g., 3303/0/5700`)
}
