// Package console is the single-character debug console each board exposes to its operator. Keys are
// read on their own goroutine; commands that touch a board are queued and run by a checker on the
// board's scheduler goroutine.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/robotarena/esfw/es"
)

// Command is one key binding. InputSize more bytes are read after the flag and passed to Run.
type Command struct {
	Flag        byte
	InputSize   uint
	Run         func(w io.Writer, input []byte) error
	Description string
}

// Page is the key table of one board
type Page struct {
	Name     string
	Commands []*Command
}

type invocation struct {
	cmd   *Command
	input []byte
}

// QueueSize bounds the commands waiting for the scheduler
const QueueSize = 8

type Console struct {
	out    io.Writer
	log    logrus.FieldLogger
	pages  []Page
	active int
	global map[byte]*Command
	queue  chan invocation
}

// New builds a console over one or more board pages. The first page is active.
func New(out io.Writer, log logrus.FieldLogger, pages ...Page) *Console {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Console{
		out:   out,
		log:   log,
		pages: pages,
		queue: make(chan invocation, QueueSize),
	}
	c.global = map[byte]*Command{}
	for _, cmd := range []*Command{c.helpCommand(), c.nextPageCommand(), verboseCommand(log)} {
		if cmd != nil {
			c.global[cmd.Flag] = cmd
		}
	}
	return c
}

// Active returns the name of the active page
func (c *Console) Active() string {
	if len(c.pages) == 0 {
		return ""
	}
	return c.pages[c.active].Name
}

func (c *Console) lookup(flag byte) (*Command, bool) {
	if cmd, ok := c.global[flag]; ok {
		return cmd, true
	}
	if len(c.pages) == 0 {
		return nil, false
	}
	for _, cmd := range c.pages[c.active].Commands {
		if cmd.Flag == flag {
			return cmd, false
		}
	}
	return nil, false
}

// Run reads keys until the reader is exhausted or the context is done. Global commands run at once;
// board commands wait for Checker.
func (c *Console) Run(ctx context.Context, r io.Reader) error {
	keys := make(chan byte)
	readErr := make(chan error, 1)
	go func() {
		br := bufio.NewReader(r)
		for {
			b, err := br.ReadByte()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case keys <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	next := func() (byte, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case err := <-readErr:
			return 0, err
		case b := <-keys:
			return b, nil
		}
	}

	for {
		flag, err := next()
		if err != nil {
			return ignoreEOF(err)
		}
		cmd, global := c.lookup(flag)
		if cmd == nil {
			continue
		}

		in := make([]byte, cmd.InputSize)
		for i := range in {
			if in[i], err = next(); err != nil {
				return ignoreEOF(err)
			}
		}

		if global {
			c.exec(cmd, in)
			continue
		}
		select {
		case c.queue <- invocation{cmd, in}:
		default:
			c.log.WithField("key", string(flag)).Warn("console busy, command dropped")
		}
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Checker runs one queued command per pass on the scheduler goroutine
func (c *Console) Checker() es.Checker {
	return func() bool {
		select {
		case inv := <-c.queue:
			c.exec(inv.cmd, inv.input)
			return true
		default:
			return false
		}
	}
}

func (c *Console) exec(cmd *Command, in []byte) {
	if err := cmd.Run(c.out, in); err != nil {
		fmt.Fprintln(c.out, "error:", err.Error())
	}
}

func (c *Console) helpCommand() *Command {
	return &Command{
		Flag:        'H',
		Description: "Show all available commands and their descriptions.",
		Run: func(w io.Writer, _ []byte) error {
			fmt.Fprintln(w, "Available Commands:")
			for _, flag := range []byte{'H', 'N', 'V'} {
				if cmd, ok := c.global[flag]; ok {
					fmt.Fprintf(w, "%s: %s\n", flagString(cmd.Flag), cmd.Description)
				}
			}
			if len(c.pages) == 0 {
				return nil
			}
			fmt.Fprintf(w, "[%s]\n", c.Active())
			for _, cmd := range c.pages[c.active].Commands {
				fmt.Fprintf(w, "%s: %s\n", flagString(cmd.Flag), cmd.Description)
			}
			return nil
		},
	}
}

func (c *Console) nextPageCommand() *Command {
	if len(c.pages) < 2 {
		return nil
	}
	return &Command{
		Flag:        'N',
		Description: "Switch to the next board.",
		Run: func(w io.Writer, _ []byte) error {
			c.active = (c.active + 1) % len(c.pages)
			fmt.Fprintf(w, "board: %s\n", c.Active())
			return nil
		},
	}
}

func verboseCommand(log logrus.FieldLogger) *Command {
	l, ok := log.(*logrus.Logger)
	if !ok {
		return nil
	}
	return &Command{
		Flag:        'V',
		Description: "Toggle verbose output.",
		Run: func(w io.Writer, _ []byte) error {
			level := logrus.DebugLevel
			if l.IsLevelEnabled(logrus.DebugLevel) {
				level = logrus.InfoLevel
			}
			l.SetLevel(level)
			fmt.Fprintf(w, "log level: %s\n", level)
			return nil
		},
	}
}

func flagString(b byte) string {
	if b >= 32 && b <= 126 {
		return string(b)
	}
	return fmt.Sprintf("0x%02X", b)
}
