package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	httptransport "marketchat/internal/adapter/transport"
	"marketchat/internal/domain/transport"
	"marketchat/internal/infrastructure/auth"
	"marketchat/internal/usecase"
	"marketchat/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.AuthToken == "" {
		log.Fatalf("MARKET_AUTH_TOKEN is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authState := auth.NewState(cfg.AuthToken, "", nil)

	client := httptransport.NewClient(cfg.APIBaseURL, authState, cfg.RequestTimeout)

	directory := usecase.NewThreadDirectory(client, cfg.DirectoryRefresh)
	session := usecase.NewChatSession(client, client, directory, cfg.MessagePageSize)
	reconciler := usecase.NewReconciler(client, directory, cfg.ReconcileInterval)

	go directory.Run(ctx)
	go directory.WatchAuth(ctx, authState)
	go reconciler.Run(ctx)

	if err := directory.Load(ctx, transport.ThreadQuery{}); err != nil {
		log.Printf("Initial thread load failed: %v", err)
	}
	reconciler.Reconcile(ctx)

	fmt.Println("marketchat - commands: list | open <n> | older | send <text> | archive | unarchive | delete | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "list":
			printThreads(directory)
		case "open":
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				fmt.Println("usage: open <n>")
				continue
			}
			threads := directory.Threads()
			if n < 1 || n > len(threads) {
				fmt.Println("no such thread")
				continue
			}
			t := threads[n-1]
			if err := session.Open(ctx, t.Listing.ID, t.ID); err != nil {
				fmt.Printf("open failed: %v\n", err)
				continue
			}
			printWindow(session)
		case "older":
			if err := session.FetchOlder(ctx); err != nil {
				fmt.Printf("fetch failed: %v\n", err)
				continue
			}
			printWindow(session)
		case "send":
			session.SetDraft(strings.TrimSpace(rest))
			if err := session.Submit(ctx); err != nil {
				fmt.Printf("send failed: %v\n", err)
				continue
			}
			printWindow(session)
		case "archive":
			if err := session.Archive(ctx); err != nil {
				fmt.Printf("archive failed: %v\n", err)
			}
		case "unarchive":
			if err := session.Unarchive(ctx); err != nil {
				fmt.Printf("unarchive failed: %v\n", err)
			}
		case "delete":
			if err := session.Delete(ctx); err != nil {
				fmt.Printf("delete failed: %v\n", err)
			}
		case "quit", "exit":
			return
		case "":
		default:
			fmt.Println("unknown command")
		}
	}
}

func printThreads(directory *usecase.ThreadDirectory) {
	threads := directory.Threads()
	if len(threads) == 0 {
		fmt.Println("no threads")
		return
	}
	for i, t := range threads {
		flag := ""
		if t.Listing.Availability != "available" {
			flag = " [" + string(t.Listing.Availability) + "]"
		}
		fmt.Printf("%2d. %s - %s%s (%d unread)\n", i+1, t.OtherParty.DisplayName, t.Listing.Title, flag, t.UnreadCount)
		if t.LastMessagePreview != "" {
			fmt.Printf("    %s\n", t.LastMessagePreview)
		}
	}
}

func printWindow(session *usecase.ChatSession) {
	for _, m := range session.Window().Messages() {
		body := m.Body
		if body == "" && len(m.Attachments) > 0 {
			body = fmt.Sprintf("(%d attachments)", len(m.Attachments))
		}
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), m.SenderName, body)
	}
	if err := session.Err(); err != nil {
		fmt.Printf("! %v\n", err)
	}
}
