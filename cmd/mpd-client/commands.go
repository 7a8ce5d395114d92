package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fpang/missing-person-client/internal/aggregate"
	"github.com/fpang/missing-person-client/internal/app"
	"github.com/fpang/missing-person-client/internal/cli"
	"github.com/fpang/missing-person-client/internal/view"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the detection service is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		h, err := a.Client.Health(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s is %s (%s, %s)\n", a.Client.BaseURL(), h.Status, h.Timestamp, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var personsCmd = &cobra.Command{
	Use:   "persons",
	Short: "List registered persons",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		persons, err := a.Persons.Load(cmd.Context())
		if err != nil {
			return err
		}
		if len(persons) == 0 {
			fmt.Println(view.NoPersonsLabel)
			return nil
		}
		for i, p := range persons {
			fmt.Printf("%2d. %-24s id=%s\n", i+1, p.Name, p.ID)
		}
		return nil
	},
}

var registerFlags struct {
	name        string
	description string
	image       string
	video       string
	pick        bool
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a missing person with a reference image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := registerFlags
		if f.pick && f.image == "" {
			path, err := cli.PickImage(cli.NativePicker)
			if err != nil {
				return err
			}
			f.image = path
		}
		if f.name == "" || f.image == "" {
			return usageError{msg: "--name and --image (or --pick) are required"}
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Preview.BindImage(cmd.Context(), f.image); err != nil {
			return usageError{msg: err.Error()}
		}
		video := ""
		if f.video != "" {
			if video, err = cli.ResolveFile(f.video); err != nil {
				return usageError{msg: err.Error()}
			}
		}
		a.State.Update(func(s *view.Snapshot) {
			s.Register.Name = f.name
			s.Register.Description = f.description
			s.Register.Video = video
		})

		person, err := a.Register.Submit(cmd.Context())
		printScreen(a)
		if err != nil {
			return err
		}
		log.Info().Str("id", string(person.ID)).Msg("Registered")
		return nil
	},
}

var detectFlags struct {
	person string
	video  string
	pick   bool
	output string
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Search a video for a registered person",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := detectFlags
		if f.pick && f.video == "" {
			path, err := cli.PickVideo(cli.NativePicker)
			if err != nil {
				return err
			}
			f.video = path
		}
		if f.person == "" || f.video == "" {
			return usageError{msg: "--person and --video (or --pick) are required"}
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Preview.BindVideo(cmd.Context(), f.video); err != nil {
			return usageError{msg: err.Error()}
		}
		a.State.Update(func(s *view.Snapshot) { s.Detect.PersonID = f.person })

		last := -1
		cancel := a.State.Subscribe(func(s view.Snapshot) {
			if s.Detect.ProgressVisible && s.Detect.Progress != last {
				last = s.Detect.Progress
				fmt.Fprintf(os.Stderr, "\rDetecting... %3d%%", last)
			}
		})
		start := time.Now()
		res, err := a.Detect.Submit(cmd.Context())
		cancel()
		fmt.Fprintf(os.Stderr, "\rDetection finished in %s\n", cli.FormatDurationShort(time.Since(start)))

		a.State.Update(func(s *view.Snapshot) { s.Active = view.SectionDetect })
		printScreen(a)
		if err != nil {
			return err
		}

		if res.Detected && f.output != "" {
			return download(cmd, a, res.VideoURL, f.output)
		}
		return nil
	},
}

var detectionsFlags struct {
	concurrency int
	rate        float64
	onError     string
}

var detectionsCmd = &cobra.Command{
	Use:   "detections",
	Short: "List detections of every registered person",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Router.Activate(cmd.Context(), view.SectionDetections); err != nil {
			return err
		}
		a.Router.Wait()
		printScreen(a)

		if msg := a.State.Snapshot().Detections.Message; msg == view.DetectionsFailed {
			return fmt.Errorf("%s", msg)
		}
		return nil
	},
}

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download <media-path>",
	Short: "Download a processed video or frame returned by the service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := downloadOutput
		if out == "" {
			out = filepath.Base(args[0])
		}
		return download(cmd, a, args[0], out)
	},
}

var shellPick bool

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive client",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Client.Health(cmd.Context()); err != nil {
			log.Warn().Err(err).Str("url", a.Client.BaseURL()).Msg("Detection service is not reachable")
		}
		a.Start(cmd.Context())

		var pick cli.PickFunc
		if shellPick {
			pick = cli.NativePicker
		}
		return app.NewShell(a, os.Stdin, os.Stdout, pick).Run(cmd.Context())
	},
}

func init() {
	rf := registerCmd.Flags()
	rf.StringVarP(&registerFlags.name, "name", "n", "", "full name (required)")
	rf.StringVarP(&registerFlags.description, "description", "d", "", "description")
	rf.StringVarP(&registerFlags.image, "image", "i", "", "reference image")
	rf.StringVar(&registerFlags.video, "video", "", "optional video of the person")
	rf.BoolVar(&registerFlags.pick, "pick", false, "choose the reference image in a file dialog")

	df := detectCmd.Flags()
	df.StringVarP(&detectFlags.person, "person", "p", "", "person id (required)")
	df.StringVar(&detectFlags.video, "video", "", "video to search")
	df.BoolVar(&detectFlags.pick, "pick", false, "choose the video in a file dialog")
	df.StringVarP(&detectFlags.output, "output", "o", "", "save the processed video here when the person is found")

	xf := detectionsCmd.Flags()
	xf.IntVar(&detectionsFlags.concurrency, "concurrency", 0, "per-person fetches in flight")
	xf.Float64Var(&detectionsFlags.rate, "rate", 0, "per-person fetches per second (0 = unlimited)")
	xf.StringVar(&detectionsFlags.onError, "on-error", "", fmt.Sprintf("%s or %s when one person's fetch fails", aggregate.PolicyAbort, aggregate.PolicySkip))
	bindLocal(detectionsCmd, "aggregate.concurrency", "concurrency")
	bindLocal(detectionsCmd, "aggregate.rate", "rate")
	bindLocal(detectionsCmd, "aggregate.on_error", "on-error")

	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "destination file (default: the media file name)")
	shellCmd.Flags().BoolVar(&shellPick, "pick", false, "open file dialogs when image or video is given no path")
}

func bindLocal(cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

func download(cmd *cobra.Command, a *app.App, ref, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	start := time.Now()
	n, err := a.Client.Download(cmd.Context(), ref, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}

	fmt.Printf("Saved %s to %s (%s in %s)\n", a.Client.MediaURL(ref), path, cli.FormatBytes(n), cli.FormatDurationShort(time.Since(start)))
	return nil
}
