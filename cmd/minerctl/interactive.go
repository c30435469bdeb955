package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/chzyer/readline"
)

const interactiveHelp = `
Commands:
  Reading:
    summary | pools | details | psu | version | status | online

  Control:
    restart | power-on | power-off | reboot
    freq <percent>          - Target frequency offset (-10..100)
    power-pct <percent>     - Power limit (0..100)
    fast-boot on|off

  Monitoring:
    watch [interval]        - Poll until Ctrl-C
    log <file.mlog>         - Show a protocol log

  help | quit
`

// runInteractive reads commands from a prompt until quit, EOF or ctx ends.
func runInteractive(ctx context.Context, cancel context.CancelFunc, r *runner) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "miner> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	// Keep log output from tearing the prompt.
	log.SetOutput(rl.Stderr())

	out := rl.Stdout()
	fmt.Fprint(out, interactiveHelp)
	for _, t := range r.targets {
		fmt.Fprintf(out, "Machine: %s (%s)\n", t.name, t.client.Address())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return nil
		}

		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			fmt.Fprint(out, interactiveHelp)
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return nil
		case "watch":
			runWatch(ctx, rl, r, args)
		default:
			if err := r.run(ctx, out, cmd, args); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		}
	}
}

// runWatch runs watch until the next line is entered at the prompt.
func runWatch(ctx context.Context, rl *readline.Instance, r *runner, args []string) {
	wctx, stop := context.WithCancel(ctx)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- r.watch(wctx, rl.Stdout(), args) }()

	fmt.Fprintln(rl.Stdout(), "Watching, press Enter to stop.")
	lines := make(chan struct{})
	go func() {
		_, _ = rl.Readline()
		close(lines)
	}()

	select {
	case err := <-done:
		if err != nil {
			fmt.Fprintf(rl.Stdout(), "Error: %v\n", err)
		}
		// Consume the pending Readline before returning to the prompt.
		<-lines
		return
	case <-lines:
	}
	stop()
	<-done
}

func completer() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("quit"),
		readline.PcItem("watch"),
		readline.PcItem("log"),
		readline.PcItem("fast-boot", readline.PcItem("on"), readline.PcItem("off")),
	}
	for name := range commands {
		if name == "fast-boot" {
			continue
		}
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}
