package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/dermlab/skinconsult-client/auth"
	"github.com/dermlab/skinconsult-client/chat"
	"github.com/dermlab/skinconsult-client/client"
	"github.com/dermlab/skinconsult-client/config"
	"github.com/dermlab/skinconsult-client/models"
	"github.com/dermlab/skinconsult-client/uploads"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}

	store := auth.NewFileTokenStore(cfg.TokenPath)
	c := client.New(cfg, store)
	ctx := context.Background()

	if !c.Identity().Authenticated() {
		email := os.Getenv("SKINCONSULT_EMAIL")
		password := os.Getenv("SKINCONSULT_PASSWORD")
		if email == "" || password == "" {
			log.Fatal("no stored credential; set SKINCONSULT_EMAIL and SKINCONSULT_PASSWORD to log in")
		}
		if _, err := c.Login(ctx, email, password); err != nil {
			log.Fatal(err)
		}
	}

	up, err := uploads.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	channel := models.ChannelAI
	if strings.EqualFold(os.Getenv("SKINCONSULT_CHANNEL"), string(models.ChannelSpecialist)) {
		channel = models.ChannelSpecialist
	}
	sess, err := c.CreateSession(ctx, channel, "")
	if err != nil {
		log.Fatal(err)
	}

	view := chat.NewSessionView(c, c.Identity(), sess)
	poller := chat.NewPoller(cfg.RequestTimeout)
	interval := cfg.AIPollInterval
	if channel == models.ChannelSpecialist {
		interval = cfg.SpecialistPollInterval
	}
	if err := poller.Watch(view, interval); err != nil {
		log.Fatal(err)
	}
	poller.Start()
	defer poller.Stop()

	zap.S().Infow("consultation session open",
		"sessionId", sess.ID,
		"channel", channel,
	)
	fmt.Println("session", sess.ID, "open; type a message, /img <path> <text> to attach, /quit to leave")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			poller.Unwatch(view)
			return
		case strings.HasPrefix(line, "/img "):
			if err := sendWithImage(ctx, view, up, strings.TrimPrefix(line, "/img ")); err != nil {
				fmt.Println("error:", err)
				continue
			}
		default:
			if err := view.Send(ctx, models.OutgoingMessage{Content: line}); err != nil {
				fmt.Println("error:", err)
				continue
			}
		}
		printTranscript(view)
	}
}

func sendWithImage(ctx context.Context, view *chat.SessionView, up *uploads.Uploader, rest string) error {
	path := rest
	text := ""
	if i := strings.IndexByte(rest, ' '); i > 0 {
		path, text = rest[:i], strings.TrimSpace(rest[i+1:])
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if up.Enabled() {
		url, err := up.UploadImage(ctx, f, strings.TrimSuffix(f.Name(), ".jpg"))
		if err != nil {
			return err
		}
		return view.Send(ctx, models.OutgoingMessage{Content: text, ImageURL: url})
	}
	return view.Send(ctx, models.OutgoingMessage{Content: text, Image: f, ImageName: f.Name()})
}

func printTranscript(view *chat.SessionView) {
	for _, m := range view.Messages() {
		marker := ""
		if m.Pending {
			marker = " (sending)"
		}
		fmt.Printf("[%s]%s %s\n", m.AuthorUserID, marker, m.Content)
	}
}
