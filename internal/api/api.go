// Package api wires LeadPipe's modules together and serves the HTTP API.
//
// Endpoints:
//
//	POST|OPTIONS /contact               submission collector
//	GET  /contact/schema                submission JSON Schema
//	POST /chat/sessions                 start a web chat session
//	GET  /chat/sessions/{id}            session state and transcript
//	POST /chat/sessions/{id}/messages   answer the current step
//	DELETE /chat/sessions/{id}          discard a session
//	POST /twilio/webhook                inbound SMS/WhatsApp (when Twilio is configured)
//	GET  /healthz                       liveness
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/collector"
	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/genai"
	"github.com/BTreeMap/LeadPipe/internal/mailer"
	"github.com/BTreeMap/LeadPipe/internal/messaging"
	"github.com/BTreeMap/LeadPipe/internal/store"
	"github.com/BTreeMap/LeadPipe/internal/twiliomsg"
	"github.com/BTreeMap/LeadPipe/internal/whatsapp"
)

const (
	// DefaultAddr is the default listen address
	DefaultAddr = ":8080"
	// DefaultSessionTTL is how long an idle chat session is kept
	DefaultSessionTTL = 24 * time.Hour
	// DefaultJanitorInterval is how often idle sessions are swept
	DefaultJanitorInterval = 10 * time.Minute
	// ShutdownTimeout bounds graceful HTTP shutdown
	ShutdownTimeout = 10 * time.Second
	// DefaultBrandName appears in confirmation e-mails
	DefaultBrandName = "LeadPipe"
)

// Opts holds configuration for the API server.
type Opts struct {
	Addr             string
	SessionTTL       time.Duration
	JanitorInterval  time.Duration
	Script           *flow.Script
	BrandName        string
	WhatsAppEnabled  bool
	TwilioWebhookURL string // public webhook URL; enables signature validation when set
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithSessionTTL sets how long idle chat sessions are kept. Zero disables the sweeper.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.SessionTTL = ttl }
}

// WithJanitorInterval sets how often idle sessions are swept.
func WithJanitorInterval(d time.Duration) Option {
	return func(o *Opts) { o.JanitorInterval = d }
}

// WithScript replaces the default chatbot script.
func WithScript(script flow.Script) Option {
	return func(o *Opts) { o.Script = &script }
}

// WithBrandName sets the company name used in confirmation e-mails.
func WithBrandName(name string) Option {
	return func(o *Opts) { o.BrandName = name }
}

// WithWhatsApp enables the linked-device WhatsApp channel.
func WithWhatsApp() Option {
	return func(o *Opts) { o.WhatsAppEnabled = true }
}

// WithTwilioWebhookURL sets the public URL of the Twilio webhook for signature validation.
func WithTwilioWebhookURL(url string) Option {
	return func(o *Opts) { o.TwilioWebhookURL = url }
}

// Run builds every module and serves until SIGINT or SIGTERM.
func Run(storeOpts []store.Option, mailerOpts []mailer.Option, genaiOpts []genai.Option, twilioOpts []twiliomsg.Option, waOpts []whatsapp.Option, apiOpts []Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, storeOpts, mailerOpts, genaiOpts, twilioOpts, waOpts, apiOpts)
}

// channel is a running messaging service and its router.
type channel struct {
	name   string
	svc    messaging.Service
	router *messaging.ChatRouter
}

func run(ctx context.Context, storeOpts []store.Option, mailerOpts []mailer.Option, genaiOpts []genai.Option, twilioOpts []twiliomsg.Option, waOpts []whatsapp.Option, apiOpts []Option) error {
	cfg := Opts{
		Addr:            DefaultAddr,
		SessionTTL:      DefaultSessionTTL,
		JanitorInterval: DefaultJanitorInterval,
		BrandName:       DefaultBrandName,
	}
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	script := flow.DefaultScript()
	if cfg.Script != nil {
		script = *cfg.Script
	}
	slog.Debug("API run configuration", "addr", cfg.Addr, "session_ttl", cfg.SessionTTL, "whatsapp", cfg.WhatsAppEnabled, "twilio", len(twilioOpts) > 0)

	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	var m mailer.Mailer = mailer.LogMailer{}
	if len(mailerOpts) > 0 {
		smtp, err := mailer.NewSMTPMailer(mailerOpts...)
		switch {
		case errors.Is(err, mailer.ErrNotConfigured):
			slog.Warn("SMTP not fully configured; confirmation e-mails will only be logged")
		case err != nil:
			return fmt.Errorf("failed to initialize mailer: %w", err)
		default:
			m = smtp
		}
	}

	brand := mailer.Brand{Name: cfg.BrandName, SupportEmail: script.SupportEmail}
	collectorSvc := collector.NewService(st, m, brand)
	schema, err := collector.NewSubmissionSchema()
	if err != nil {
		return fmt.Errorf("failed to build submission schema: %w", err)
	}

	flowOpts := []flow.ControllerOption{flow.WithNotifier(flow.LogNotifier{})}
	if classifier, err := genai.NewClient(genaiOpts...); err == nil {
		flowOpts = append(flowOpts, flow.WithClassifier(classifier))
	} else {
		slog.Info("Industry classifier disabled", "reason", err)
	}
	sessions := flow.NewSessionManager(st, script, collectorSvc, flowOpts...)
	defer sessions.Close()
	if cfg.SessionTTL > 0 {
		if err := sessions.StartJanitor(ctx, cfg.SessionTTL, cfg.JanitorInterval); err != nil {
			return fmt.Errorf("failed to start session janitor: %w", err)
		}
	}

	var channels []channel
	var twilioSvc *messaging.TwilioService
	if len(twilioOpts) > 0 {
		twilioSvc, err = newTwilioService(twilioOpts, cfg.TwilioWebhookURL)
		if err != nil {
			return err
		}
		channels = append(channels, channel{name: twilioChannelName(twilioOpts), svc: twilioSvc})
	}
	if cfg.WhatsAppEnabled {
		waClient, err := whatsapp.NewClient(ctx, waOpts...)
		if err != nil {
			return fmt.Errorf("failed to initialize WhatsApp client: %w", err)
		}
		defer waClient.Disconnect()
		channels = append(channels, channel{name: "whatsapp", svc: messaging.NewWhatsAppService(waClient)})
	}

	var wg sync.WaitGroup
	for i := range channels {
		ch := &channels[i]
		if err := ch.svc.Start(ctx); err != nil {
			return fmt.Errorf("failed to start %s channel: %w", ch.name, err)
		}
		ch.router = messaging.NewChatRouter(ch.svc, sessions, ch.name)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ch.router.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Chat router stopped", "channel", ch.name, "error", err)
			}
		}()
	}
	defer func() {
		for _, ch := range channels {
			if err := ch.svc.Stop(); err != nil {
				slog.Error("Failed to stop channel", "channel", ch.name, "error", err)
			}
		}
		wg.Wait()
	}()

	server := NewServer(sessions, collector.NewHandler(collectorSvc, schema), twilioSvc)
	return serve(ctx, cfg.Addr, server.Handler())
}

func newTwilioService(twilioOpts []twiliomsg.Option, webhookURL string) (*messaging.TwilioService, error) {
	client, err := twiliomsg.NewClient(twilioOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Twilio client: %w", err)
	}
	var svcOpts []messaging.TwilioOption
	if webhookURL != "" {
		var tw twiliomsg.Opts
		for _, opt := range twilioOpts {
			opt(&tw)
		}
		svcOpts = append(svcOpts, messaging.WithSignatureValidation(tw.AuthToken, webhookURL))
	}
	return messaging.NewTwilioService(client, svcOpts...), nil
}

// twilioChannelName distinguishes Twilio WhatsApp sessions from SMS sessions.
func twilioChannelName(twilioOpts []twiliomsg.Option) string {
	var tw twiliomsg.Opts
	for _, opt := range twilioOpts {
		opt(&tw)
	}
	if strings.HasPrefix(tw.From, twiliomsg.WhatsAppPrefix) {
		return "twilio-whatsapp"
	}
	return "sms"
}

// serve runs the HTTP server until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("LeadPipe API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	<-errCh
	return nil
}
