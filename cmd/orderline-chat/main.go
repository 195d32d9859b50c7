// orderline-chat is a terminal client for the turn API: it opens a session
// and relays whatever you type, printing the counter's replies.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
)

var (
	app       = kingpin.New("orderline-chat", "Chat with the order counter.")
	serverURL = app.Flag("server", "Server base URL.").Default("http://localhost:3100").Envar("ORDERLINE_SERVER_URL").String()
	apiKey    = app.Flag("api-key", "API key for the server.").Envar("ORDERLINE_API_KEY").Required().String()
	sessionID = app.Flag("session", "Resume an existing session.").String()
)

type turnResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Terminal  bool   `json:"terminal"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	client := &http.Client{Timeout: 30 * time.Second}
	counter := color.New(color.FgCyan)

	id := *sessionID
	if id == "" {
		resp, err := post(client, "/api/sessions", nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to start session:", err)
			os.Exit(1)
		}
		id = resp.SessionID
		counter.Println(resp.Reply)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}

		resp, err := post(client, "/api/sessions/"+id+"/turns", map[string]string{"utterance": line})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		counter.Println(resp.Reply)
		if resp.Terminal {
			return
		}
	}
}

func post(client *http.Client, path string, body any) (*turnResponse, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(http.MethodPost, *serverURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", *apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("%s (%s)", apiErr.Message, apiErr.Code)
		}
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var tr turnResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}
