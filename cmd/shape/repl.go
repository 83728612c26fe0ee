package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	shapelang "github.com/shape-lang/shapelang"
)

const (
	promptMain = "==> "
	promptCont = "... "
)

var (
	banner   = fmt.Sprintf("Shapelang %s REPL\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit.", shapelang.Version)
	helpText = `REPL commands:
  :help    Show this help
  :quit    Exit the REPL`
)

func red(s string) string { return "\x1b[31m" + s + "\x1b[0m" }

func runRepl() error {
	fmt.Println(banner)

	shapelang.EnableColor = cfg.Color

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, cfg.HistoryFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	rt := shapelang.NewRuntime(shapelang.WithLogger(log))

	for {
		code, ok := readByParseProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			break
		}

		if strings.HasPrefix(strings.TrimSpace(code), ":") {
			switch strings.TrimSpace(strings.ToLower(code)) {
			case ":quit":
				return nil
			case ":help":
				fmt.Println(helpText)
			default:
				fmt.Printf("unknown command. Type :quit to exit.\n")
			}
			continue
		}

		if strings.TrimSpace(code) == "" {
			continue
		}

		v, err := rt.EvalSource(code)
		if err != nil {
			msg := shapelang.WrapErrorWithName(err, "<repl>", code).Error()
			if cfg.Color {
				msg = red(msg)
			}
			fmt.Fprintln(os.Stderr, msg)
			continue
		}
		fmt.Println(shapelang.FormatValue(v))
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}

	return nil
}

// readByParseProbe reads lines until the accumulated input parses, or fails
// with an error other than "incomplete input". Returns false on Ctrl+D.
func readByParseProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		_, perr := shapelang.ParseSExprInteractive(src)
		if perr == nil {
			return src, true
		}
		if shapelang.IsIncomplete(perr) {
			continue
		}
		return src, true
	}
}
