package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// Prompter reads answers from a line-oriented input.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a Prompter reading from in and writing prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask prompts for a value. Returns def if the user enters nothing or input
// cannot be read. The returned error is io.EOF once input is exhausted.
func (p *Prompter) Ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}

	input, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		if err != io.EOF {
			log.Warn().Err(err).Msg("Failed to read input")
		}
		return def, err
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	return input, nil
}

// Line reads one command line, split into fields.
func (p *Prompter) Line(prompt string) ([]string, error) {
	fmt.Fprint(p.out, prompt)
	input, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return nil, err
	}
	return strings.Fields(input), nil
}
