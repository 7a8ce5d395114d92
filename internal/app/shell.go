package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fpang/missing-person-client/internal/api"
	"github.com/fpang/missing-person-client/internal/cli"
	"github.com/fpang/missing-person-client/internal/render"
	"github.com/fpang/missing-person-client/internal/view"
	"github.com/rs/zerolog/log"
)

const shellHelp = `Commands:
  go <register|detect|detections|reports>  switch section
  name [text]            set the person's name (no text prompts for it)
  desc [text]            set the description (no text prompts for it)
  image [path|-]         choose the reference image (no path opens a dialog, - clears)
  regvideo [path|-]      attach an optional video to the registration
  register               submit the registration form
  person <id|#>          select the person to search for (# is the list position)
  video [path|-]         choose the video to search
  detect                 submit the detection form
  reload                 reload the person list
  show                   print the current screen
  help                   print this help
  quit                   leave the shell
`

// Shell is an interactive terminal front-end over an App. Failures of user
// actions are shown as notifications and never end the session.
type Shell struct {
	app    *App
	prompt *cli.Prompter
	out    io.Writer
	pick   cli.PickFunc
}

// NewShell creates a Shell. pick opens file dialogs; nil disables them.
func NewShell(a *App, in io.Reader, out io.Writer, pick cli.PickFunc) *Shell {
	return &Shell{app: a, prompt: cli.NewPrompter(in, out), out: out, pick: pick}
}

// Run reads commands until quit or end of input.
func (s *Shell) Run(ctx context.Context) error {
	s.show()
	for {
		fields, err := s.prompt.Line("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if len(fields) == 0 {
			continue
		}

		quit, err := s.Exec(ctx, fields)
		if err != nil {
			log.Debug().Err(err).Str("command", fields[0]).Msg("Shell command failed")
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Exec runs one command and prints the resulting screen.
func (s *Shell) Exec(ctx context.Context, fields []string) (quit bool, err error) {
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.Join(args, " ")

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprint(s.out, shellHelp)
		return false, nil
	case "show":
	case "go":
		if len(args) != 1 {
			return false, s.usage("go <section>")
		}
		err = s.app.Router.Activate(ctx, view.Section(strings.ToLower(args[0])))
		s.app.Router.Wait()
	case "name":
		var name string
		if name, err = s.ask(rest, "Name", s.app.State.Snapshot().Register.Name); err == nil {
			s.app.State.Update(func(snap *view.Snapshot) { snap.Register.Name = name })
		}
	case "desc":
		var desc string
		if desc, err = s.ask(rest, "Description", s.app.State.Snapshot().Register.Description); err == nil {
			s.app.State.Update(func(snap *view.Snapshot) { snap.Register.Description = desc })
		}
	case "image":
		var path string
		if path, err = s.path(rest, cli.PickImage); err == nil {
			err = s.app.Preview.BindImage(ctx, path)
		}
	case "regvideo":
		var path string
		if path, err = s.path(rest, cli.PickVideo); err == nil {
			s.app.State.Update(func(snap *view.Snapshot) { snap.Register.Video = path })
		}
	case "video":
		var path string
		if path, err = s.path(rest, cli.PickVideo); err == nil {
			err = s.app.Preview.BindVideo(ctx, path)
		}
	case "person":
		err = s.selectPerson(rest)
	case "register":
		_, err = s.app.Register.Submit(ctx)
	case "detect":
		err = s.detect(ctx)
	case "reload":
		_, err = s.app.Persons.Load(ctx)
	default:
		return false, s.usage("unknown command " + strconv.Quote(cmd) + "; try help")
	}

	if err != nil && !isReported(err) {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	s.show()
	return false, err
}

// detect submits the detection form, drawing the progress bar as it moves.
func (s *Shell) detect(ctx context.Context) error {
	last := -1
	cancel := s.app.State.Subscribe(func(snap view.Snapshot) {
		if !snap.Detect.ProgressVisible || snap.Detect.Progress == last {
			return
		}
		last = snap.Detect.Progress
		fmt.Fprintf(s.out, "\rDetecting... %3d%%", last)
	})
	defer func() {
		cancel()
		if last >= 0 {
			fmt.Fprintln(s.out)
		}
	}()
	_, err := s.app.Detect.Submit(ctx)
	return err
}

func (s *Shell) selectPerson(arg string) error {
	if arg == "" {
		return s.usage("person <id|#>")
	}
	var err error
	s.app.State.Update(func(snap *view.Snapshot) {
		for _, o := range snap.PersonOptions {
			if o.Value != "" && o.Value == arg {
				snap.Detect.PersonID = o.Value
				return
			}
		}
		if n, convErr := strconv.Atoi(arg); convErr == nil && n >= 1 && n < len(snap.PersonOptions) && snap.PersonOptions[n].Value != "" {
			snap.Detect.PersonID = snap.PersonOptions[n].Value
			return
		}
		err = fmt.Errorf("no person %q", arg)
	})
	return err
}

// path returns arg, or asks pick when arg is empty. "-" clears.
func (s *Shell) path(arg string, pick func(cli.PickFunc) (string, error)) (string, error) {
	switch arg {
	case "-":
		return "", nil
	case "":
		if s.pick == nil {
			return "", errors.New("no file dialog available; pass a path")
		}
		return pick(s.pick)
	}
	return cli.ResolveFile(arg)
}

// ask returns arg, or prompts for the value when arg is empty. An empty
// answer keeps current.
func (s *Shell) ask(arg, label, current string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	v, err := s.prompt.Ask(label, current)
	if errors.Is(err, io.EOF) {
		return v, nil
	}
	return v, err
}

func (s *Shell) usage(msg string) error {
	fmt.Fprintf(s.out, "usage: %s\n", msg)
	return errors.New(msg)
}

func (s *Shell) show() {
	if err := render.WriteText(s.out, s.app.Screen()); err != nil {
		log.Warn().Err(err).Msg("Failed to render screen")
	}
}

// isReported reports whether err has already been surfaced as a
// notification by the component that returned it.
func isReported(err error) bool {
	var apiErr *api.Error
	return errors.As(err, &apiErr)
}
