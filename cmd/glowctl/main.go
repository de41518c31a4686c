package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/glowstudio-app/glowchat/internal/account"
	"github.com/glowstudio-app/glowchat/internal/api"
	"github.com/glowstudio-app/glowchat/internal/bus"
	"github.com/glowstudio-app/glowchat/internal/chat"
	"github.com/glowstudio-app/glowchat/internal/config"
	"github.com/glowstudio-app/glowchat/internal/connstate"
	"github.com/glowstudio-app/glowchat/internal/transport"
	"go.uber.org/zap"
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

	cfg := config.LoadOrDefault(account.ConfigPath())

	if args[0] == "login" {
		cmdLogin(cfg, accountName)
		return
	}

	client, cred := authedClient(cfg, accountName)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, client, accountName, cred, *jsonFlag)
	case "partners":
		cmdPartners(ctx, client, cred, *jsonFlag)
	case "unread":
		cmdUnread(ctx, client, *jsonFlag)
	case "notifications":
		cmdNotifications(ctx, client, *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: glowctl send <partner-id> <message>")
			os.Exit(1)
		}
		cmdSend(ctx, client, args[1], strings.Join(args[2:], " "), *jsonFlag)
	case "watch":
		cmdWatch(cfg, accountName, cred)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: glowctl [--account <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  login                    Authenticate and cache the token")
	fmt.Fprintln(os.Stderr, "  status                   Show account and credential status")
	fmt.Fprintln(os.Stderr, "  partners                 List conversation partners")
	fmt.Fprintln(os.Stderr, "  unread                   Show total unread count")
	fmt.Fprintln(os.Stderr, "  notifications            List notifications")
	fmt.Fprintln(os.Stderr, "  send <id> <message>      Send a message")
	fmt.Fprintln(os.Stderr, "  watch                    Stream inbound messages")
}

// authedClient loads the cached credential and builds an API client, exiting
// with a hint when no valid credential exists.
func authedClient(cfg *config.Config, accountName string) (*api.Client, *account.Credential) {
	cred, err := account.LoadCredential(accountName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cred.Expired(time.Now()) {
		fmt.Fprintf(os.Stderr, "error: cached token for account %q expired; run `glowctl login`\n", accountName)
		os.Exit(1)
	}
	return api.New(cfg.ServerURL, cred.Token, zap.NewNop()), cred
}

func cmdLogin(cfg *config.Config, accountName string) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print("Password: ")
	password, err := reader.ReadString('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	client := api.New(cfg.ServerURL, "", zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	resp, err := client.Login(ctx, strings.TrimSpace(email), strings.TrimSpace(password))
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	if err := account.EnsureDir(accountName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cred := &account.Credential{Token: resp.Token, Profile: resp.User}
	if err := account.SaveCredential(accountName, cred); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Logged in as %s (%s)\n", resp.User.FullName, resp.User.Role)
}

func cmdStatus(ctx context.Context, client *api.Client, accountName string, cred *account.Credential, jsonOut bool) {
	profile, err := client.Me(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(map[string]any{"account": accountName, "user": profile})
		return
	}
	fmt.Printf("Account: %s\n", accountName)
	fmt.Printf("User:    %s <%s>\n", profile.FullName, profile.Email)
	fmt.Printf("Role:    %s\n", profile.Role)
	fmt.Printf("Subject: %s\n", cred.Subject())
}

func cmdPartners(ctx context.Context, client *api.Client, cred *account.Credential, jsonOut bool) {
	var partners []api.Partner
	if cred.Profile.Role == account.RoleCustomer {
		p, err := client.AdminPartner(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		partners = []api.Partner{*p}
	} else {
		var err error
		partners, err = client.Customers(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	if jsonOut {
		outputJSON(partners)
		return
	}
	if len(partners) == 0 {
		fmt.Println("No conversations.")
		return
	}
	for _, p := range partners {
		unread := ""
		if p.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", p.UnreadCount)
		}
		fmt.Printf("%-6d %-30s %s%s\n", p.ID, p.FullName, p.LastMessage, unread)
	}
}

func cmdUnread(ctx context.Context, client *api.Client, jsonOut bool) {
	count, err := client.UnreadCount(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(map[string]int{"unread": count})
		return
	}
	fmt.Printf("Unread messages: %d\n", count)
}

func cmdNotifications(ctx context.Context, client *api.Client, jsonOut bool) {
	items, err := client.Notifications(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(items)
		return
	}
	if len(items) == 0 {
		fmt.Println("No notifications.")
		return
	}
	for _, n := range items {
		marker := " "
		if !n.Read {
			marker = "*"
		}
		fmt.Printf("%s %-6d %-25s %s\n", marker, n.ID, n.Title, n.Body)
	}
}

func cmdSend(ctx context.Context, client *api.Client, idArg, content string, jsonOut bool) {
	receiverID, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid partner id %q\n", idArg)
		os.Exit(1)
	}
	msg, err := client.Send(ctx, receiverID, content)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(msg)
		return
	}
	fmt.Printf("Sent message %d to %s\n", msg.ID, msg.ReceiverName)
}

// cmdWatch connects the push channel and prints inbound messages until
// interrupted.
func cmdWatch(cfg *config.Config, accountName string, cred *account.Credential) {
	b := bus.New()
	machine := connstate.NewMachine(b)
	token := cred.Token
	opts := []transport.Option{
		transport.WithReconnectDelay(time.Duration(cfg.ReconnectSecs) * time.Second),
		transport.WithHeartbeat(time.Duration(cfg.HeartbeatSecs) * time.Second),
	}
	if clientID, err := account.ClientID(accountName); err == nil {
		opts = append(opts, transport.WithClientID(clientID))
	}
	channel := transport.NewChannel(
		cfg.WebSocketURL,
		func() string { return token },
		machine, b, zap.NewNop(),
		opts...,
	)

	events, unsub := b.Subscribe("transport.", 16)
	defer unsub()

	channel.Connect()
	defer channel.Disconnect()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	fmt.Fprintln(os.Stderr, "watching for messages, Ctrl-C to stop")
	for {
		select {
		case evt := <-events:
			change, ok := evt.Payload.(connstate.Change)
			if !ok {
				continue
			}
			fmt.Fprintf(os.Stderr, "connection: %s\n", change.To)
			if change.To == connstate.Connected {
				// Subscriptions do not survive reconnects; renew on
				// every connected edge.
				channel.Subscribe(chat.QueueDestination, printMessage)
			}
		case <-sig:
			fmt.Fprintln(os.Stderr, "stopping")
			return
		}
	}
}

func printMessage(body json.RawMessage) {
	var msg api.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		fmt.Fprintf(os.Stderr, "undecodable message: %v\n", err)
		return
	}
	ts := ""
	if !msg.Timestamp.IsZero() {
		ts = msg.Timestamp.Local().Format("15:04:05")
	}
	fmt.Printf("[%s] %s: %s\n", ts, msg.SenderName, msg.Content)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
