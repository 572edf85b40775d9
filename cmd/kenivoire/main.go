package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"kenivoire-client/internal/api"
	"kenivoire-client/internal/chat"
	"kenivoire-client/internal/config"
	"kenivoire-client/internal/gateway"
	"kenivoire-client/internal/model"
	"kenivoire-client/internal/session"
	"kenivoire-client/internal/unread"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kenivoire <login USER PASS | logout | me | ads | conversations | unread | watch CONVERSATION>")
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	tokens := session.NewStore(cfg.TokenFile)
	gw := gateway.New(gateway.Config{
		BaseURL:        cfg.BaseURL,
		Tokens:         tokens,
		HTTPClient:     &http.Client{Timeout: cfg.HTTPTimeout},
		RefreshTimeout: cfg.RefreshTimeout,
		Logger:         logger,
	})
	client := api.New(gw, tokens)
	sched := gateway.NewScheduler(gw, tokens, cfg.RefreshInterval, logger)
	gw.OnLoggedOut(func() {
		logger.Warn().Msg("session expired, logged out")
		sched.Stop()
	})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "login":
		if len(os.Args) != 4 {
			usage()
			os.Exit(2)
		}
		sess, err := client.Login(ctx, os.Args[2], os.Args[3])
		if err != nil {
			logger.Fatal().Err(err).Msg("login failed")
		}
		fmt.Printf("logged in as %s (expires %s)\n", sess.Username, sess.ExpiresAt.Format("15:04:05"))

	case "logout":
		if err := client.Logout(); err != nil {
			logger.Fatal().Err(err).Msg("logout failed")
		}
		fmt.Println("logged out")

	case "me":
		user, err := client.Me(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("request failed")
		}
		fmt.Printf("%s <%s> %s\n", user.Username, user.Email, user.Location)

	case "ads":
		ads, err := client.ListAds(ctx, api.AdQuery{})
		if err != nil {
			logger.Fatal().Err(err).Msg("request failed")
		}
		for _, ad := range ads {
			fmt.Printf("%s  %8d FCFA  %-12s %s\n", ad.ID, ad.Price, ad.Location, ad.Title)
		}

	case "conversations":
		convs, err := client.ListConversations(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("request failed")
		}
		for _, conv := range convs {
			title := ""
			if conv.Ad != nil {
				title = conv.Ad.Title
			}
			fmt.Printf("%s  %-24s %d messages\n", conv.ID, title, len(conv.Messages))
		}

	case "unread":
		count, err := client.UnreadCount(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("request failed")
		}
		fmt.Printf("%d unread\n", count)

	case "watch":
		if len(os.Args) != 3 {
			usage()
			os.Exit(2)
		}
		watch(ctx, client, tokens, sched, cfg, logger, os.Args[2])

	default:
		usage()
		os.Exit(2)
	}
}

func watch(ctx context.Context, client *api.Client, tokens *session.Store, sched *gateway.Scheduler, cfg config.Config, logger zerolog.Logger, conversationID string) {
	if _, ok := tokens.Current(); !ok {
		logger.Fatal().Msg("not logged in")
	}

	sched.Start()
	defer sched.Stop()

	counter := unread.NewCounter(client, tokens, cfg.UnreadPoll, logger)
	counter.Subscribe(func(count int) {
		fmt.Printf("-- %d unread --\n", count)
	})
	counter.Start()
	defer counter.Stop()

	engine := chat.NewEngine(chat.Config{
		API:       client,
		Tokens:    tokens,
		WSBaseURL: cfg.WSBaseURL,
		Unread:    counter,
		OnMessage: func(m model.Message) {
			fmt.Printf("[%s] %s\n", m.Sender.Username, m.Content)
		},
		Logger: logger,
	})
	if err := engine.Open(ctx, conversationID); err != nil {
		logger.Fatal().Err(err).Msg("could not open conversation")
	}
	defer engine.Close()

	for _, m := range engine.Messages() {
		fmt.Printf("[%s] %s\n", m.Sender.Username, m.Content)
	}
	if err := engine.MarkRead(ctx); err != nil {
		logger.Warn().Err(err).Msg("mark-read failed")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
