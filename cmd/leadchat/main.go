// Command leadchat runs the contact chatbot in a terminal and submits the result to a
// LeadPipe collector endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/BTreeMap/LeadPipe/internal/collector"
	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/util"
	"github.com/joho/godotenv"
)

// DefaultCollectorURL is used when neither -collector-url nor $LEADPIPE_COLLECTOR_URL is set.
const DefaultCollectorURL = "http://localhost:8080/contact"

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("aborted")

// prompter asks the user for one answer.
type prompter interface {
	Input(message, help string) (string, error)
	Multiline(message string) (string, error)
	Select(message string, options []string) (string, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Input(message, help string) (string, error) {
	var out string
	err := survey.AskOne(&survey.Input{Message: message, Help: help}, &out)
	return out, translateSurveyErr(err)
}

func (surveyPrompter) Multiline(message string) (string, error) {
	var out string
	err := survey.AskOne(&survey.Multiline{Message: message}, &out)
	return out, translateSurveyErr(err)
}

func (surveyPrompter) Select(message string, options []string) (string, error) {
	var out string
	err := survey.AskOne(&survey.Select{Message: message, Options: options, PageSize: len(options)}, &out)
	return out, translateSurveyErr(err)
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	defaultURL := os.Getenv("LEADPIPE_COLLECTOR_URL")
	if defaultURL == "" {
		defaultURL = DefaultCollectorURL
	}
	collectorURL := flag.String("collector-url", defaultURL, "collector endpoint (overrides $LEADPIPE_COLLECTOR_URL)")
	apiKey := flag.String("api-key", os.Getenv("LEADPIPE_API_KEY"), "key sent with submissions (overrides $LEADPIPE_API_KEY)")
	scriptFile := flag.String("script-file", os.Getenv("SCRIPT_FILE"), "YAML file with chatbot wording overrides")
	flag.Parse()

	script := flow.DefaultScript()
	if *scriptFile != "" {
		loaded, err := flow.LoadScript(*scriptFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to load script:", err)
			os.Exit(1)
		}
		script = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	timeout := util.ParseDurationEnv("LEADPIPE_SUBMIT_TIMEOUT", collector.DefaultClientTimeout)
	clientOpts := []collector.ClientOption{collector.WithHTTPClient(&http.Client{Timeout: timeout})}
	if *apiKey != "" {
		clientOpts = append(clientOpts, collector.WithAPIKey(*apiKey))
	}
	c := flow.NewController(script, collector.NewClient(*collectorURL, clientOpts...),
		flow.WithSessionID(util.GenerateRandomID("cli_", 12)), flow.WithChannel("terminal"))

	err := converse(ctx, surveyPrompter{}, c, os.Stdout)
	switch {
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stdout, "\nBye!")
		os.Exit(130)
	case err != nil:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// converse prints bot messages and asks for answers until the session ends.
func converse(ctx context.Context, p prompter, c *flow.Controller, out io.Writer) error {
	transcript := c.Transcript()
	// the last message is the first prompt, asked interactively below
	for _, msg := range transcript[:len(transcript)-1] {
		fmt.Fprintln(out, msg.Text)
	}

	for !c.State().IsTerminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		step, ok := c.CurrentStep()
		if !ok {
			return fmt.Errorf("session in state %s has no current step", c.State())
		}
		answer, err := ask(p, step)
		if err != nil {
			return err
		}

		turn, err := c.Handle(ctx, answer)
		switch {
		case errors.Is(err, flow.ErrEmptyAnswer):
			fmt.Fprintln(out, "Please enter an answer.")
			continue
		case errors.Is(err, flow.ErrUnknownOption):
			fmt.Fprintln(out, "Please pick one of the listed options.")
			continue
		case errors.Is(err, flow.ErrAnswerTooLong):
			fmt.Fprintln(out, "That answer is too long. Please shorten it.")
			continue
		case err != nil:
			return err
		}

		for _, msg := range turn.Messages {
			if msg.Kind == "" {
				// prompts are shown by the next question instead
				fmt.Fprintln(out, msg.Text)
			}
		}
	}
	return nil
}

func ask(p prompter, step models.Step) (string, error) {
	switch step.Kind {
	case models.InputKindSelect, models.InputKindConsent:
		return p.Select(step.Prompt, step.Options)
	case models.InputKindTextArea:
		return p.Multiline(step.Prompt)
	}
	help := ""
	if step.Field == models.FieldCompanyName {
		help = fmt.Sprintf("Optional, type %q to leave it out", flow.SkipSentinel)
	}
	return p.Input(step.Prompt, help)
}
