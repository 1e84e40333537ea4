// Command console is the terminal counterpart of the web console's
// notification bell: it keeps a live push channel to the notification
// service, mirrors the server's notification state locally, and exposes the
// usual actions (list, read, read-all, delete) over REST.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/client"
	"github.com/yourorg/taskboard/internal/config"
	"github.com/yourorg/taskboard/internal/model"
	"github.com/yourorg/taskboard/internal/realtime"
	"github.com/yourorg/taskboard/internal/session"
	"github.com/yourorg/taskboard/internal/store"
)

const usage = `Usage: console [flags] <command>

Commands:
  login       authenticate and store the session
  logout      clear the stored session
  watch       follow notifications live (default)
  list        print the first page of notifications
  read <id>   mark one notification as read
  read-all    mark every notification as read
  delete <id> delete one notification
`

func main() {
	serverURL := flag.String("server", "", "notification service base URL")
	hubURL := flag.String("hub", "", "push hub websocket URL")
	configPath := flag.String("config", "", "optional config file")
	username := flag.String("username", "", "username or email for login")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, err := createLogger(*verbose)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg := loadConsoleConfig(*configPath, *serverURL, *hubURL)

	home, err := os.UserHomeDir()
	if err != nil {
		logger.Fatal("cannot determine home directory", zap.Error(err))
	}
	sessions, err := session.Open("taskboard", filepath.Join(home, ".config", "taskboard"), logger)
	if err != nil {
		logger.Fatal("cannot open session store", zap.Error(err))
	}

	api := client.NewNotificationClient(cfg.ServerURL, sessions.Token, func() {
		// The server rejected the session: clear it, the same way the web
		// console drops back to the login page.
		if err := sessions.Clear(); err != nil {
			logger.Warn("failed to clear session", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "session expired; run 'console login'")
	}, logger)

	command := flag.Arg(0)
	if command == "" {
		command = "watch"
	}

	ctx := context.Background()
	switch command {
	case "login":
		runLogin(ctx, api, sessions, *username)
	case "logout":
		if err := sessions.Clear(); err != nil {
			logger.Fatal("failed to clear session", zap.Error(err))
		}
		fmt.Println("logged out")
	case "watch":
		runWatch(cfg, api, sessions, logger)
	case "list":
		runList(ctx, cfg, api, logger)
	case "read":
		runMarkRead(ctx, cfg, api, logger, flag.Arg(1))
	case "read-all":
		runMarkAllRead(ctx, cfg, api, logger)
	case "delete":
		runDelete(ctx, cfg, api, logger, flag.Arg(1))
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runLogin(ctx context.Context, api *client.NotificationClient, sessions *session.Store, username string) {
	reader := bufio.NewReader(os.Stdin)
	if username == "" {
		fmt.Print("username or email: ")
		line, _ := reader.ReadString('\n')
		username = strings.TrimSpace(line)
	}
	fmt.Print("password: ")
	line, _ := reader.ReadString('\n')
	password := strings.TrimSpace(line)

	token, err := api.Login(ctx, username, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
	if err := sessions.Save(session.Session{Token: token.Token, User: token.User}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to store session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("logged in as %s\n", token.User.Username)
}

func runWatch(cfg config.ConsoleConfig, api *client.NotificationClient, sessions *session.Store, logger *zap.Logger) {
	router := realtime.NewRouter(logger)
	notifications := store.New(api, logger)
	notifications.Bind(router)

	// Print alongside the store's own handlers; both run per event, in
	// registration order.
	router.OnReceiveNotification(func(msg model.NotificationMessage) {
		fmt.Printf("* %s  %s", msg.TypeName, msg.Title)
		if msg.Message != "" {
			fmt.Printf(": %s", msg.Message)
		}
		fmt.Println()
	})
	router.OnReceiveUnreadCount(func(count int) {
		fmt.Printf("-- %d unread\n", count)
	})
	router.OnTodoCompleted(func(msg model.TodoUpdateMessage) {
		logger.Debug("todo completed", zap.Int64("todoId", msg.TodoID), zap.String("title", msg.Title))
	})

	conn := realtime.NewConnection(cfg.HubURL, realtime.TokenSource(sessions.Token), router, logger)
	conn.OnStateChange(func(s realtime.State) {
		fmt.Printf("-- connection %s\n", s)
	})
	conn.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := notifications.FetchUnreadCount(ctx); err == nil {
		fmt.Printf("-- %d unread\n", notifications.UnreadCount())
	}
	cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	conn.Stop()
}

func runList(ctx context.Context, cfg config.ConsoleConfig, api *client.NotificationClient, logger *zap.Logger) {
	notifications := store.New(api, logger)
	if err := notifications.FetchPage(ctx, 1, cfg.PageSize); err != nil {
		fmt.Fprintf(os.Stderr, "failed to list notifications: %v\n", err)
		os.Exit(1)
	}
	if err := notifications.FetchUnreadCount(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to fetch unread count: %v\n", err)
	}

	items := notifications.Notifications()
	if len(items) == 0 {
		fmt.Println("no notifications")
		return
	}
	for _, n := range items {
		marker := " "
		if n.StatusName == "Unread" {
			marker = "*"
		}
		fmt.Printf("%s %6d  %-20s  %s\n", marker, n.ID, n.TypeName, n.Title)
	}
	fmt.Printf("-- %d unread", notifications.UnreadCount())
	if notifications.HasMore() {
		fmt.Print(", more pages available")
	}
	fmt.Println()
}

func runMarkRead(ctx context.Context, cfg config.ConsoleConfig, api *client.NotificationClient, logger *zap.Logger, arg string) {
	id := parseID(arg)
	notifications := store.New(api, logger)
	if err := notifications.MarkRead(ctx, id); err != nil {
		fmt.Fprintf(os.Stderr, "failed to mark notification read: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("notification %d marked read\n", id)
}

func runMarkAllRead(ctx context.Context, cfg config.ConsoleConfig, api *client.NotificationClient, logger *zap.Logger) {
	notifications := store.New(api, logger)
	if err := notifications.MarkAllRead(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to mark notifications read: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("all notifications marked read")
}

func runDelete(ctx context.Context, cfg config.ConsoleConfig, api *client.NotificationClient, logger *zap.Logger, arg string) {
	id := parseID(arg)
	notifications := store.New(api, logger)
	if err := notifications.Delete(ctx, id); err != nil {
		// Deletes are never applied optimistically; a failure here means
		// the notification still exists.
		fmt.Fprintf(os.Stderr, "delete failed, notification %d was not removed: %v\n", id, err)
		os.Exit(1)
	}
	fmt.Printf("notification %d deleted\n", id)
}

func parseID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expected a numeric notification id, got %q\n", arg)
		os.Exit(2)
	}
	return id
}

func loadConsoleConfig(path, serverURL, hubURL string) config.ConsoleConfig {
	cfg := config.ConsoleConfig{
		ServerURL: "http://localhost:5248",
		HubURL:    "ws://localhost:5248/notificationHub",
		PageSize:  10,
	}
	if path != "" {
		if loaded, err := config.LoadConfig(path); err == nil {
			cfg = loaded.Console
		} else {
			fmt.Fprintf(os.Stderr, "ignoring unreadable config %s: %v\n", path, err)
		}
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if hubURL != "" {
		cfg.HubURL = hubURL
	}
	return cfg
}

func createLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}
