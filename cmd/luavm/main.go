package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
)

const defaultServer = "http://localhost:8077"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	serverURL := os.Getenv("LUAVM_SERVER")
	if serverURL == "" {
		serverURL = defaultServer
	}

	cli := newClient(serverURL)
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "create":
		err = cli.create(args)
	case "list":
		err = cli.list()
	case "stats":
		err = cli.stats()
	case "exec":
		err = cli.exec(args)
	case "input":
		err = cli.input(args)
	case "output":
		err = cli.output(args)
	case "rm":
		err = cli.remove(args)
	case "cleanup":
		err = cli.cleanup()
	case "find":
		err = cli.find(args)
	case "attach":
		err = cli.attach(args)
	case "health":
		err = cli.health()
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: luavm <command> [args]

Commands:
  create [id]            Create a session (started and attached)
  list                   List sessions
  stats                  Show session statistics
  exec <id> <code>       Execute code and print the output
  input <id> <text>      Send raw input to a session
  output <id>            Drain queued output from a session
  rm <id>                Remove a session
  cleanup                Remove dead sessions
  find <pattern>         Find sessions by glob pattern
  attach <id>            Attach interactively over WebSocket
  health                 Show daemon health

Environment:
  LUAVM_SERVER           Daemon base URL (default http://localhost:8077)`)
}

type client struct {
	base string
	http *resty.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetTimeout(2 * time.Minute).
			SetHeader("Content-Type", "application/json"),
	}
}

func (c *client) create(args []string) error {
	body := map[string]any{"start": true, "attach": false}
	if len(args) > 0 {
		body["id"] = args[0]
	}
	resp, err := c.http.R().SetBody(body).Post("/sessions")
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func (c *client) list() error {
	resp, err := c.http.R().Get("/sessions")
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func (c *client) stats() error {
	resp, err := c.http.R().Get("/sessions/stats")
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func (c *client) exec(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: luavm exec <id> <code>")
	}
	resp, err := c.http.R().
		SetBody(map[string]string{"command": strings.Join(args[1:], " ")}).
		Post("/sessions/" + url.PathEscape(args[0]) + "/execute")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}
	var out struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return err
	}
	fmt.Print(out.Output)
	return nil
}

func (c *client) input(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: luavm input <id> <text>")
	}
	resp, err := c.http.R().
		SetBody(map[string]string{"text": strings.Join(args[1:], " ")}).
		Post("/sessions/" + url.PathEscape(args[0]) + "/input")
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func (c *client) output(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: luavm output <id>")
	}
	resp, err := c.http.R().
		SetQueryParam("drain", "true").
		Get("/sessions/" + url.PathEscape(args[0]) + "/output")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}
	var out struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return err
	}
	fmt.Print(out.Output)
	return nil
}

func (c *client) remove(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: luavm rm <id>")
	}
	resp, err := c.http.R().Delete("/sessions/" + url.PathEscape(args[0]))
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func (c *client) cleanup() error {
	resp, err := c.http.R().Post("/sessions/cleanup")
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func (c *client) find(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: luavm find <pattern>")
	}
	resp, err := c.http.R().
		SetQueryParam("pattern", args[0]).
		Get("/sessions/find")
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func (c *client) health() error {
	resp, err := c.http.R().Get("/health")
	if err != nil {
		return err
	}
	return printResponse(resp)
}

// attach bridges stdin/stdout to the session's WebSocket stream.
func (c *client) attach(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: luavm attach <id>")
	}
	sessionID := args[0]

	u, err := url.Parse(c.base)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/sessions/" + url.PathEscape(sessionID) + "/stream"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	fmt.Fprintf(os.Stderr, "Attached to %s. Ctrl-C to detach.\n", sessionID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 2)

	go func() {
		for {
			var msg struct {
				Type string `json:"type"`
				Data string `json:"data"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				errChan <- err
				return
			}
			if msg.Type == "output" {
				fmt.Print(msg.Data)
			}
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			msg := map[string]string{"type": "input", "data": scanner.Text()}
			if err := conn.WriteJSON(msg); err != nil {
				errChan <- err
				return
			}
		}
		errChan <- scanner.Err()
	}()

	select {
	case <-sigChan:
		fmt.Fprintln(os.Stderr, "\nDetached.")
		return nil
	case err := <-errChan:
		if err != nil && websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return err
	}
}

func apiError(resp *resty.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		return fmt.Errorf("%s (%s)", body.Error, resp.Status())
	}
	return fmt.Errorf("request failed: %s", resp.Status())
}

func printResponse(resp *resty.Response) error {
	if resp.IsError() {
		return apiError(resp)
	}
	fmt.Println(strings.TrimSpace(string(resp.Body())))
	return nil
}
