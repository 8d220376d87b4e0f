package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/frostfury-server/internal/notify"
)

func main() {
	accountID := flag.String("account", "", "account id to push to")
	title := flag.String("title", "Frostfury", "notification title")
	body := flag.String("body", "Push check", "notification body")
	eventsURL := flag.String("events", "", "optional ws:// URL of the server event feed to observe as -account")
	flag.Parse()

	baseURL := os.Getenv("PUSH_WEBHOOK_URL")
	apiKey := os.Getenv("PUSH_API_KEY")
	if baseURL == "" {
		log.Fatal("PUSH_WEBHOOK_URL is required")
	}

	headers := func() map[string]string {
		m := map[string]string{}
		if apiKey != "" {
			m["X-Api-Key"] = apiKey
		}
		return m
	}

	client := notify.NewWebhookClient(baseURL,
		notify.WithHeaderProvider(headers),
		notify.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		log.Printf("/health error: %v", err)
	} else {
		log.Println("/health ok")
	}

	if *accountID == "" {
		log.Println("-account not set; skipping push")
		return
	}
	if *eventsURL != "" {
		go observe(*eventsURL, *accountID)
		// give the feed time to subscribe before the push fires
		time.Sleep(500 * time.Millisecond)
	}
	err := client.Push(ctx, notify.PushMessage{
		AccountID: *accountID,
		Kind:      "check",
		Title:     *title,
		Body:      *body,
	})
	if err != nil {
		log.Fatalf("push error: %v", err)
	}
	log.Printf("push ok: account=%s", *accountID)

	if *eventsURL != "" {
		// Observe for a short window
		t := time.NewTimer(10 * time.Second)
		<-t.C
	}
}

// observe prints events from the server feed until the window closes.
func observe(url, accountID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"X-User-Id": []string{accountID}},
	})
	if err != nil {
		log.Printf("events connect error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	log.Printf("events connected: %s", url)
	for {
		var ev map[string]any
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return
		}
		fmt.Printf("event type=%v at=%v\n", ev["type"], ev["at"])
	}
}
