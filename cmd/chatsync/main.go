// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/chatsync/gateway"
	"github.com/bureau-foundation/chatsync/lib/config"
	"github.com/bureau-foundation/chatsync/lib/secret"
	"github.com/bureau-foundation/chatsync/talk"
)

const versionString = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	switch subcommand := os.Args[1]; subcommand {
	case "login":
		return runLogin(os.Args[2:])
	case "watch":
		return runWatch(os.Args[2:])
	case "send":
		return runSend(os.Args[2:])
	case "contacts", "groups", "rooms":
		return runList(subcommand, os.Args[2:])
	case "version":
		fmt.Printf("chatsync %s\n", versionString)
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: chatsync <subcommand> [flags]

Subcommands:
  login <user-id>       Authenticate and save session state
  watch                 Stream incoming messages from the saved session
  send <peer> <text>    Send a text message (peer by ID or display name)
  contacts              List known contacts
  groups                List known groups
  rooms                 List known rooms
  version               Print version information

Run 'chatsync <subcommand> --help' for subcommand flags.
`)
}

// newLogger picks a text handler on a terminal, JSON otherwise, so
// piped output stays machine-parseable.
func newLogger() *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

func newGateway(cfg *config.Config, logger *slog.Logger) (*gateway.Client, error) {
	timeout, err := cfg.Service.RequestTimeout()
	if err != nil {
		return nil, err
	}
	return gateway.NewClient(gateway.ClientConfig{
		ServiceURL: cfg.Service.URL,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	})
}

// loadSession restores the saved session state and re-authenticates
// the token with the service.
func loadSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*talk.Session, error) {
	state, err := talk.LoadState(cfg.State.File)
	if err != nil {
		return nil, fmt.Errorf("no usable session state (run 'chatsync login' first): %w", err)
	}

	client, err := newGateway(cfg, logger)
	if err != nil {
		return nil, err
	}
	session, err := talk.RestoreSession(talk.SessionConfig{
		Gateway:  client,
		Logger:   logger,
		PageSize: cfg.Sync.PageSize,
	}, state)
	if err != nil {
		return nil, err
	}
	if err := session.Login(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

func saveSession(cfg *config.Config, session *talk.Session, logger *slog.Logger) error {
	state, err := session.ExportState()
	if err != nil {
		return err
	}
	if err := talk.SaveState(cfg.State.File, state); err != nil {
		return err
	}
	logger.Info("session state saved", "path", cfg.State.File, "revision", state.Revision)
	return nil
}

func runLogin(args []string) error {
	flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
	configPath := flags.String("config", "", "config file path (default: $CHATSYNC_CONFIG)")
	passwordFile := flags.String("password-file", "", "read the password from this file ('-' for stdin) instead of prompting")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: chatsync login <user-id>")
	}
	userID := flags.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger()

	password, err := readPassword(*passwordFile)
	if err != nil {
		return err
	}
	defer password.Close()

	client, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}
	session, err := talk.NewSession(talk.SessionConfig{
		Gateway:  client,
		UserID:   userID,
		Password: password,
		PageSize: cfg.Sync.PageSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	if err := session.Login(ctx); err != nil {
		return err
	}
	return saveSession(cfg, session, logger)
}

// readPassword reads the password from the given file, stdin, or an
// interactive terminal prompt.
func readPassword(path string) (*secret.Buffer, error) {
	if path != "" {
		return secret.ReadFromPath(path)
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return secret.ReadFromPath("-")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return secret.NewFromBytes(raw)
}

func runWatch(args []string) error {
	flags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	configPath := flags.String("config", "", "config file path (default: $CHATSYNC_CONFIG)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signalContext()
	defer stop()

	session, err := loadSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	dispatcher, err := talk.NewDispatcher(talk.DispatcherConfig{
		Session:   session,
		BatchSize: cfg.Sync.BatchSize,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	cycles := make(chan talk.Cycle, 16)
	done := make(chan error, 1)
	go func() {
		done <- dispatcher.Run(ctx, cycles)
	}()

	for {
		select {
		case cycle := <-cycles:
			printCycle(cycle)
		case err := <-done:
			// Persist the cursor regardless of how the loop ended, so
			// the next watch resumes where this one stopped.
			if saveErr := saveSession(cfg, session, logger); saveErr != nil {
				logger.Warn("saving session state on exit failed", "error", saveErr)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func printCycle(cycle talk.Cycle) {
	switch cycle.Kind {
	case talk.CycleMessage:
		message := cycle.Message
		sender := "<unknown>"
		if message.Sender != nil {
			sender = peerLabel(message.Sender)
		}
		receiver := "<unknown>"
		if message.Receiver != nil {
			receiver = peerLabel(message.Receiver)
		}
		when := message.CreatedAt.Format(time.RFC3339)
		if message.HasContent {
			fmt.Printf("%s  %s -> %s  [%s]\n", when, sender, receiver, message.ContentType)
		} else {
			fmt.Printf("%s  %s -> %s  %s\n", when, sender, receiver, message.Text)
		}
		if cycle.ResolveErr != nil {
			fmt.Printf("  (unresolved: %v)\n", cycle.ResolveErr)
		}
	case talk.CycleOperation:
		fmt.Printf("op %s rev=%d\n", cycle.Operation.Type, cycle.Operation.Revision)
	}
}

func peerLabel(peer talk.Peer) string {
	switch p := peer.(type) {
	case *talk.Contact:
		if p.DisplayName != "" {
			return p.DisplayName
		}
	case *talk.Group:
		if p.Name != "" {
			return p.Name
		}
	}
	return peer.PeerID()
}

func runSend(args []string) error {
	flags := pflag.NewFlagSet("send", pflag.ContinueOnError)
	configPath := flags.String("config", "", "config file path (default: $CHATSYNC_CONFIG)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 2 {
		return fmt.Errorf("usage: chatsync send <peer> <text...>")
	}
	peerRef := flags.Arg(0)
	text := strings.Join(flags.Args()[1:], " ")

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signalContext()
	defer stop()

	session, err := loadSession(ctx, cfg, logger)
	if err != nil {
		return err
	}

	peer := findPeer(session.Directory(), peerRef)
	if peer == nil {
		return fmt.Errorf("no contact, group, or room matches %q", peerRef)
	}

	message, err := session.SendText(ctx, peer, text)
	if err != nil {
		return err
	}
	logger.Info("message sent", "message_id", message.ID, "to", peer.PeerID())
	return saveSession(cfg, session, logger)
}

// findPeer resolves a peer reference: exact ID first (contact, group,
// room), then display name (contacts, then groups).
func findPeer(directory *talk.Directory, ref string) talk.Peer {
	if contact := directory.ContactByID(ref); contact != nil {
		return contact
	}
	if group := directory.GroupByID(ref); group != nil {
		return group
	}
	if room := directory.RoomByID(ref); room != nil {
		return room
	}
	if contact := directory.ContactByName(ref); contact != nil {
		return contact
	}
	if group := directory.GroupByName(ref); group != nil {
		return group
	}
	return nil
}

func runList(kind string, args []string) error {
	flags := pflag.NewFlagSet(kind, pflag.ContinueOnError)
	configPath := flags.String("config", "", "config file path (default: $CHATSYNC_CONFIG)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signalContext()
	defer stop()

	session, err := loadSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	directory := session.Directory()

	switch kind {
	case "contacts":
		for _, contact := range directory.Contacts() {
			fmt.Printf("%s\t%s\n", contact.ID, contact.DisplayName)
		}
	case "groups":
		for _, group := range directory.Groups() {
			status := "joined"
			if !group.Joined {
				status = "invited"
			}
			fmt.Printf("%s\t%s\t%s\t%d members\n", group.ID, group.Name, status, len(group.Members))
		}
	case "rooms":
		for _, room := range directory.Rooms() {
			fmt.Printf("%s\t%d members\n", room.ID, len(room.Members))
		}
	}
	return saveSession(cfg, session, logger)
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
