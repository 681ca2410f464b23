package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

var errUnknownCommand = errors.New("unknown command")

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Status(ctx context.Context) error
	Tab(ctx context.Context, args []string) error
	Access(ctx context.Context, args []string) error
	Offers(ctx context.Context, args []string) error
	Preload(ctx context.Context) error
	Buy(ctx context.Context, args []string) error
	Clear(ctx context.Context) error
	State(ctx context.Context) error
	Stats(ctx context.Context) error
	Stored(ctx context.Context) error
	Reset(ctx context.Context) error
}

const helpText = `Available commands:
  status                          subscription summary
  tab <tab>                       entitlement of one tab (purchase, selling, register)
  access [tab]                    whether tabs are unlocked (memory only, stored flag alongside)
  offers [tab]                    purchasable offers
  preload                         refresh everything that is stale
  buy <offer> [qty] [method] [ref]  purchase an offer
  clear                           forget cached entitlements
  state                           refresh state and fetch time of every cache key
  stats                           cache metrics
  stored                          keys in the local store
  reset                           clear the cache and wipe the local store
  exit | quit                     leave the program`

// runREPL starts a simple read–eval–print loop for the DairyKeeper CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a' with the remaining tokens as
// arguments. The loop exits on scanner EOF, when ctx ends, or when the user
// types "exit" or "quit".
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("dk %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		quit, err := dispatch(ctx, a, strings.ToLower(parts[0]), parts[1:])
		if quit {
			printlnFn("Bye!")
			return
		}
		if errors.Is(err, errUnknownCommand) {
			printlnFn("Unknown command:", parts[0])
			continue
		}
		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

// dispatch runs one command. quit is true for exit and quit.
func dispatch(ctx context.Context, a execIface, cmd string, args []string) (quit bool, err error) {
	switch cmd {
	case "help", "?":
		printlnFn(helpText)
	case "status", "s":
		err = a.Status(ctx)
	case "tab", "t":
		err = a.Tab(ctx, args)
	case "access", "a":
		err = a.Access(ctx, args)
	case "offers", "o":
		err = a.Offers(ctx, args)
	case "preload", "p":
		err = a.Preload(ctx)
	case "buy":
		err = a.Buy(ctx, args)
	case "clear":
		err = a.Clear(ctx)
	case "state":
		err = a.State(ctx)
	case "stats":
		err = a.Stats(ctx)
	case "stored":
		err = a.Stored(ctx)
	case "reset":
		err = a.Reset(ctx)
	case "exit", "quit":
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}
	return false, err
}
