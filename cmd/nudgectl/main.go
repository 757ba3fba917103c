package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/omninudge/nudge/internal/account"
	"github.com/omninudge/nudge/internal/local"
)

func main() {
	accountFlag := flag.String("account", "", "account name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	accountName := account.Resolve(*accountFlag)
	if err := account.ValidateName(accountName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := local.NewClient(account.SocketPath(accountName))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !c.Ping(ctx) {
		fmt.Fprintf(os.Stderr, "error: no daemon running for account %q (start nudged first)\n", accountName)
		os.Exit(1)
	}

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "login":
		cmdLogin(ctx, c)
	case "logout":
		cmdLogout(ctx, c)
	case "conversations":
		cmdConversations(ctx, c, *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: nudgectl messages <conversation-id>")
			os.Exit(1)
		}
		cmdMessages(ctx, c, args[1], *jsonFlag)
	case "send":
		cmdSend(ctx, c, args[1:])
	case "read":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: nudgectl read <conversation-id>")
			os.Exit(1)
		}
		cmdRead(ctx, c, args[1])
	case "feed":
		cmdFeed(ctx, c, *jsonFlag)
	case "hubs":
		cmdHubs(ctx, c, *jsonFlag)
	case "thread":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: nudgectl thread <post-id>")
			os.Exit(1)
		}
		cmdThread(ctx, c, args[1], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: nudgectl [--account <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                       Show session status")
	fmt.Fprintln(os.Stderr, "  login                        Log in (prompts for credentials)")
	fmt.Fprintln(os.Stderr, "  logout                       Log out and drop the stored token")
	fmt.Fprintln(os.Stderr, "  conversations                List conversations")
	fmt.Fprintln(os.Stderr, "  messages <conversation-id>   Show a conversation's messages")
	fmt.Fprintln(os.Stderr, "  send --to <user>|--conversation <id> [--file <path>] <text>")
	fmt.Fprintln(os.Stderr, "  read <conversation-id>       Mark a conversation read")
	fmt.Fprintln(os.Stderr, "  feed                         Show the front page")
	fmt.Fprintln(os.Stderr, "  hubs                         List communities")
	fmt.Fprintln(os.Stderr, "  thread <post-id>             Show a mirrored Reddit thread")
}

func cmdStatus(ctx context.Context, c *local.Client, jsonOut bool) {
	resp, err := c.Status(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Account: %s\n", resp.Account)
	fmt.Printf("State:   %s\n", resp.State)
	if resp.LoggedIn {
		fmt.Printf("User:    %s (#%d)\n", resp.Username, resp.UserID)
	} else {
		fmt.Println("User:    not logged in")
	}
}

func cmdLogin(ctx context.Context, c *local.Client) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		fail(err)
	}
	username = strings.TrimSpace(username)

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fail(err)
	}

	resp, err := c.Login(ctx, username, string(password))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Logged in as %s (#%d)\n", resp.Username, resp.UserID)
}

func cmdLogout(ctx context.Context, c *local.Client) {
	if err := c.Logout(ctx); err != nil {
		fail(err)
	}
	fmt.Println("Logged out.")
}

func cmdConversations(ctx context.Context, c *local.Client, jsonOut bool) {
	resp, err := c.Conversations(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	if len(resp.Conversations) == 0 {
		fmt.Println("No conversations.")
		return
	}
	for _, conv := range resp.Conversations {
		unread := ""
		if conv.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", conv.UnreadCount)
		}
		fmt.Printf("%-6d %-20s %s%s\n", conv.ID, conv.PeerUsername, truncate(conv.LastBody, 50), unread)
	}
	if resp.Source == "cache" {
		fmt.Fprintln(os.Stderr, "(offline: showing cached data)")
	}
}

func cmdMessages(ctx context.Context, c *local.Client, idArg string, jsonOut bool) {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fail(fmt.Errorf("invalid conversation id %q", idArg))
	}
	resp, err := c.Messages(ctx, id, 0, 50)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	// Newest first from the daemon; print oldest first.
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		m := resp.Messages[i]
		ts := time.UnixMilli(m.SentAt).Format("01/02 15:04")
		status := ""
		if m.Status == "sending" || m.Status == "failed" {
			status = " [" + m.Status + "]"
		}
		fmt.Printf("%s  %s:%s %s\n", ts, m.SenderName, status, m.Body)
	}
}

func cmdSend(ctx context.Context, c *local.Client, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	to := fs.String("to", "", "recipient username (first contact)")
	conv := fs.Int64("conversation", 0, "existing conversation id")
	file := fs.String("file", "", "media file to attach")
	_ = fs.Parse(args)

	body := strings.Join(fs.Args(), " ")
	if body == "" && *file == "" {
		fmt.Fprintln(os.Stderr, "usage: nudgectl send --to <user>|--conversation <id> [--file <path>] <text>")
		os.Exit(1)
	}

	resp, err := c.Send(ctx, local.SendRequest{
		ConversationID: *conv,
		Recipient:      *to,
		Body:           body,
		MediaPath:      *file,
	})
	if err != nil {
		fail(err)
	}
	fmt.Printf("Queued (%s)\n", resp.ClientRef)
}

func cmdRead(ctx context.Context, c *local.Client, idArg string) {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fail(fmt.Errorf("invalid conversation id %q", idArg))
	}
	if err := c.Open(ctx, id); err != nil {
		fail(err)
	}
	fmt.Println("Marked read.")
}

func cmdFeed(ctx context.Context, c *local.Client, jsonOut bool) {
	resp, err := c.Feed(ctx, 50)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	for _, p := range resp.Posts {
		hub := p.Hub
		if p.Source == "reddit" {
			hub = "r/" + hub
		}
		fmt.Printf("%-8d %5d  %-16s %s\n", p.ID, p.Score, hub, p.Title)
	}
	if resp.Source == "cache" {
		fmt.Fprintln(os.Stderr, "(offline: showing cached data)")
	}
}

func cmdHubs(ctx context.Context, c *local.Client, jsonOut bool) {
	resp, err := c.Hubs(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	for _, h := range resp.Hubs {
		name := h.Name
		if h.Source == "reddit" {
			name = "r/" + name
		}
		fmt.Printf("%-20s %6d posts  %s\n", name, h.PostCount, h.Title)
	}
}

func cmdThread(ctx context.Context, c *local.Client, idArg string, jsonOut bool) {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fail(fmt.Errorf("invalid post id %q", idArg))
	}
	resp, err := c.Thread(ctx, id)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("%s (%d points, by %s)\n", resp.Title, resp.Score, resp.Author)
	if resp.SelfText != "" {
		fmt.Printf("\n%s\n", resp.SelfText)
	}
	fmt.Println()
	for _, cm := range resp.Comments {
		indent := strings.Repeat("  ", cm.Depth)
		fmt.Printf("%s%s (%d): %s\n", indent, cm.Author, cm.Score, cm.Body)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
