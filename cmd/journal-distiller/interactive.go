package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/journal-distiller/journal"
)

// errQuit ends the program without an error exit code.
var errQuit = errors.New("quit")

// prompter asks questions on out and reads line answers from in.
// Invalid answers are reported and the question is asked again.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

func (p *prompter) line(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}
		return "", fmt.Errorf("read answer: %w", io.ErrUnexpectedEOF)
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// choice returns the first letter of the answer once it is one of options.
func (p *prompter) choice(question, options string) (byte, error) {
	for {
		s, err := p.line(question)
		if err != nil {
			return 0, err
		}
		s = strings.ToLower(s)
		if len(s) > 0 && strings.IndexByte(options, s[0]) >= 0 {
			return s[0], nil
		}
		fmt.Fprintf(p.out, "Invalid choice. Enter one of: %s\n", strings.Join(strings.Split(options, ""), ", "))
	}
}

// date returns nil for a blank answer.
func (p *prompter) date(question string) (*time.Time, error) {
	for {
		s, err := p.line(question + " (DD.MM.YYYY, blank for no bound): ")
		if err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		if t, ok := journal.ParseDate(s); ok {
			return &t, nil
		}
		fmt.Fprintln(p.out, "Invalid date. Use DD.MM.YYYY or leave blank.")
	}
}

func (p *prompter) nonNegative(question string, def int) (int, error) {
	for {
		s, err := p.line(fmt.Sprintf("%s (default %d): ", question, def))
		if err != nil {
			return 0, err
		}
		if s == "" {
			return def, nil
		}
		n, err := strconv.Atoi(s)
		switch {
		case err != nil:
			fmt.Fprintln(p.out, "Invalid number. Enter a whole number.")
		case n < 0:
			fmt.Fprintln(p.out, "Enter a number >= 0.")
		default:
			return n, nil
		}
	}
}

// params asks for every filter setting, offering def as defaults for the thresholds.
func (p *prompter) params(def journal.Params) (journal.Params, error) {
	fmt.Fprintln(p.out, "\n--- Filters ---")
	var out journal.Params
	var err error

	if out.Start, err = p.date("Start date, inclusive"); err != nil {
		return journal.Params{}, err
	}
	for {
		if out.End, err = p.date("End date, inclusive"); err != nil {
			return journal.Params{}, err
		}
		if out.Start == nil || out.End == nil || !out.End.Before(*out.Start) {
			break
		}
		fmt.Fprintln(p.out, "End date is before start date.")
	}

	sel, err := p.line("Threads to split by time gap (comma separated ids or categories, *all* for every thread, blank for none): ")
	if err != nil {
		return journal.Params{}, err
	}
	out.SplitSelector = journal.ParseSelector(sel)
	if !out.SplitSelector.Empty() {
		if out.SplitDays, err = p.nonNegative("Max days between posts before splitting (0 = no split)", def.SplitDays); err != nil {
			return journal.Params{}, err
		}
	}

	if out.MinArticleLength, err = p.nonNegative("Min total article length per thread (0 = off)", def.MinArticleLength); err != nil {
		return journal.Params{}, err
	}
	if out.MinMemberQuoteLength, err = p.nonNegative("Min length of a member quote (0 = off)", def.MinMemberQuoteLength); err != nil {
		return journal.Params{}, err
	}
	return out, nil
}

// checkpointAction resolves the ask mode for an existing checkpoint.
func (p *prompter) checkpointAction(path string) (string, error) {
	fmt.Fprintf(p.out, "\nCheckpoint %s found.\n", path)
	c, err := p.choice("Action? [(u)se it, (r)eplace and refilter, (q)uit]: ", "urq")
	if err != nil {
		return "", err
	}
	switch c {
	case 'u':
		return CheckpointReuse, nil
	case 'r':
		return CheckpointReplace, nil
	}
	return CheckpointAbort, nil
}

// confirmSend returns true to send, false to refilter, or errQuit.
func (p *prompter) confirmSend(n int) (bool, error) {
	c, err := p.choice(fmt.Sprintf("Send %d requests? [(y)es, (r)efilter, (q)uit]: ", n), "yrq")
	if err != nil {
		return false, err
	}
	switch c {
	case 'y':
		return true, nil
	case 'r':
		return false, nil
	}
	return false, errQuit
}

// refilterOrQuit is offered when filtering left nothing to send.
func (p *prompter) refilterOrQuit() error {
	c, err := p.choice("Action? [(r)efilter, (q)uit]: ", "rq")
	if err != nil {
		return err
	}
	if c == 'q' {
		return errQuit
	}
	return nil
}
