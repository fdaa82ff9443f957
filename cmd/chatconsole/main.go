package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hadhyhermawan/apppatrol-admin-console/internal/chat"
	"github.com/hadhyhermawan/apppatrol-admin-console/internal/config"
	"github.com/hadhyhermawan/apppatrol-admin-console/internal/events"
	"github.com/hadhyhermawan/apppatrol-admin-console/internal/session"
	"github.com/hadhyhermawan/apppatrol-admin-console/internal/store/rabbitmq"
	"github.com/hadhyhermawan/apppatrol-admin-console/internal/store/rediscache"
	"github.com/hadhyhermawan/apppatrol-admin-console/internal/transport"
)

func newLogger(env string) *zap.Logger {
	if env == "dev" {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}

type stdinConfirmer struct {
	in *bufio.Reader
}

func (c *stdinConfirmer) Confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := c.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func resolveSession(ctx context.Context, cfg config.Config, store *session.Store, logger *zap.Logger) (session.Session, string, error) {
	token := cfg.APIToken
	if token != "" {
		sess, err := session.FromToken(token)
		if err != nil {
			return session.Session{}, "", fmt.Errorf("parse API token: %w", err)
		}
		rec := &session.Record{
			OperatorID: sess.OperatorID,
			Name:       sess.Name,
			Role:       sess.Role,
			Token:      token,
		}
		if err := store.Save(ctx, rec); err != nil {
			logger.Sugar().Warnw("persisting session failed", "error", err)
		}
		return sess, token, nil
	}

	rec, err := store.Load(ctx)
	if err != nil {
		return session.Session{}, "", fmt.Errorf("no API_TOKEN set and no stored session: %w", err)
	}
	sess, err := session.FromToken(rec.Token)
	if err != nil {
		return session.Session{}, "", fmt.Errorf("stored token unusable: %w", err)
	}
	return sess, rec.Token, nil
}

func main() {
	bootLog := newLogger("dev")
	if err := godotenv.Load(); err != nil {
		bootLog.Debug("no .env file, using process environment")
	}
	cfg := config.Load()

	logger := newLogger(cfg.Env)
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := session.Open(cfg.StatePath)
	if err != nil {
		sugar.Fatalw("open local state", "path", cfg.StatePath, "error", err)
	}

	sess, token, err := resolveSession(ctx, cfg, store, logger)
	if err != nil {
		sugar.Fatalw("resolve session", "error", err)
	}
	sugar.Infow("session ready", "operator", sess.OperatorID, "role", sess.Role, "client_id", sess.ClientID)

	api := transport.NewClient(cfg.APIBaseURL, token, logger)
	bus := events.NewBus()

	var cache chat.SnapshotCache
	if cfg.RedisAddr != "" {
		rc := rediscache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "chatconsole", cfg.RedisTTL)
		defer rc.Close()
		cache = rc
	}

	var audit chat.AuditPublisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			sugar.Warnw("audit publisher unavailable", "error", err)
		} else {
			defer pub.Close()
			audit = pub
		}
	}

	directory := chat.NewDirectory(api, bus, logger, chat.DirectoryOptions{
		Interval: cfg.DirectoryInterval,
		Limit:    cfg.DirectoryLimit,
		Cache:    cache,
	})
	active := chat.NewActiveThread(api, bus, logger, chat.ActiveThreadOptions{
		Interval: cfg.ThreadInterval,
		Limit:    cfg.ThreadLimit,
		Cache:    cache,
	})

	stdin := bufio.NewReader(os.Stdin)
	composer := chat.NewComposer(api, sess, directory, active, bus, logger)
	moderator := chat.NewModerator(api, sess, directory, active, &stdinConfirmer{in: stdin}, audit, bus, logger)

	bus.Subscribe(events.Failure, func(ev events.Event) {
		fmt.Fprintf(os.Stderr, "! %v\n", ev.Data)
	})

	directory.Start(ctx)
	defer directory.Stop()
	defer active.SetRoom(context.Background(), "")

	fmt.Printf("chatconsole — operator %s (%s). Type 'help'.\n", sess.Name, sess.Role)
	repl(ctx, stdin, cfg, sess, directory, active, composer, moderator)
	sugar.Info("shutting down")
}

func repl(ctx context.Context, stdin *bufio.Reader, cfg config.Config, sess session.Session,
	directory *chat.Directory, active *chat.ActiveThread, composer *chat.Composer, moderator *chat.Moderator) {

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("> ")
		line, err := stdin.ReadString('\n')
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "", "#":
		case "help":
			fmt.Println("rooms | find <term> | open <room> | close | show | who | send <text> | attach <path> | detach | grep <term> | del <id> | wipe | quit")
		case "rooms":
			for _, t := range directory.Threads() {
				preview := "-"
				if t.LastMessageText != nil {
					preview = *t.LastMessageText
				}
				fmt.Printf("%-24s %4d msg %3d ppl  %s\n", t.Room, t.TotalMessages, t.TotalParticipants, preview)
			}
		case "find":
			directory.SetRoomFilter(arg)
			if err := directory.Refresh(ctx, false); err != nil {
				fmt.Println("refresh failed:", err)
			}
		case "open":
			if err := active.SetRoom(ctx, arg); err != nil {
				fmt.Println("open failed:", err)
			}
		case "close":
			_ = active.SetRoom(ctx, "")
		case "show":
			records := chat.BuildView(active.Messages(), sess, cfg.StoragePrefix)
			if len(records) == 0 {
				fmt.Println("(no messages yet)")
			}
			for _, r := range records {
				marker := " "
				if r.Own {
					marker = "*"
				}
				if r.IsReply {
					fmt.Printf("  | %s: %s\n", r.ReplySender, r.ReplyText)
				}
				fmt.Printf("%s #%d [%s] %s: %s", marker, r.Message.ID, r.TimeLabel, r.Message.SenderName, r.Message.Text)
				if r.Mode != chat.RenderNone {
					fmt.Printf(" <%s %s>", r.Mode, r.AttachmentURL)
				}
				fmt.Println()
			}
		case "who":
			for _, p := range active.Participants() {
				fmt.Printf("%-24s %d msg\n", p.SenderName, p.MessageCount)
			}
		case "send":
			composer.SetText(arg)
			if err := composer.Send(ctx); err != nil {
				fmt.Println("send failed:", err)
			}
		case "attach":
			data, err := os.ReadFile(arg)
			if err != nil {
				fmt.Println("read failed:", err)
				continue
			}
			composer.StageAttachment(arg, data)
			fmt.Printf("staged %s (%d bytes)\n", arg, len(data))
		case "detach":
			composer.ClearAttachment()
		case "grep":
			if err := active.SetQuery(ctx, arg); err != nil {
				fmt.Println("search failed:", err)
			}
		case "del":
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				fmt.Println("usage: del <message id>")
				continue
			}
			if err := moderator.DeleteMessage(ctx, id); err != nil {
				fmt.Println("delete failed:", err)
			}
		case "wipe":
			room := active.Room()
			if room == "" {
				fmt.Println("no open room")
				continue
			}
			if err := moderator.DeleteThread(ctx, room); err != nil {
				fmt.Println("wipe failed:", err)
			}
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command; try 'help'")
		}
	}
}
