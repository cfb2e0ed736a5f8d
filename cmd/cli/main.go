package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

const usage = `usage: statuspulse-cli <command> [flags]

commands:
  add [-name N] [-interval S] <url>   add a target (prompts for the URL when omitted)
  targets                              list targets with today's uptime
  uptime [-start D] [-end D] <id>      availability over a range (RFC3339 or YYYY-MM-DD)
  history [-start D] [-end D] <id>     daily buckets, default last 90 days
  check <id>                           probe a target now

env: API_BASE (default http://localhost:8080), API_KEY`

type client struct {
	base string
	key  string
	http *http.Client
}

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	c := &client{
		base: strings.TrimRight(api, "/"),
		key:  os.Getenv("API_KEY"),
		http: &http.Client{Timeout: 30 * time.Second},
	}

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"add"}
	}
	var err error
	switch args[0] {
	case "add":
		err = c.add(args[1:])
	case "targets":
		err = c.targets()
	case "uptime":
		err = c.rangeCmd("uptime", args[1:])
	case "history":
		err = c.rangeCmd("history", args[1:])
	case "check":
		err = c.check(args[1:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *client) do(method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("API returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) add(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "display name")
	interval := fs.Int("interval", 0, "probe interval in seconds (0 = default)")
	_ = fs.Parse(args)

	raw := fs.Arg(0)
	if raw == "" {
		fmt.Print("Enter a site URL to monitor (e.g., https://example.com): ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		raw = strings.TrimSpace(line)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return fmt.Errorf("invalid URL %q", raw)
	}

	var resp struct {
		Target struct {
			ID     string `json:"id"`
			URL    string `json:"url"`
			Status string `json:"status"`
		} `json:"target"`
		Summary *struct {
			Up        bool    `json:"up"`
			LatencyMS *int    `json:"latency_ms"`
			Error     *string `json:"error"`
		} `json:"summary"`
	}
	body := map[string]any{"url": raw, "name": *name, "interval": *interval}
	if err := c.do(http.MethodPost, "/api/targets", body, &resp); err != nil {
		return err
	}
	fmt.Printf("Added %s (id %s), status %s\n", resp.Target.URL, resp.Target.ID, resp.Target.Status)
	if s := resp.Summary; s != nil {
		switch {
		case s.Up && s.LatencyMS != nil:
			fmt.Printf("First check: up in %d ms\n", *s.LatencyMS)
		case s.Error != nil:
			fmt.Printf("First check: down (%s)\n", *s.Error)
		}
	}
	return nil
}

func (c *client) targets() error {
	var rows []struct {
		ID     string  `json:"id"`
		Name   string  `json:"name"`
		URL    string  `json:"url"`
		Status string  `json:"status"`
		Uptime float64 `json:"uptime"`
	}
	if err := c.do(http.MethodGet, "/api/targets", nil, &rows); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tURL\tSTATUS\tTODAY")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f%%\n", r.ID, r.Name, r.URL, r.Status, r.Uptime)
	}
	return tw.Flush()
}

func (c *client) rangeCmd(kind string, args []string) error {
	fs := flag.NewFlagSet(kind, flag.ExitOnError)
	start := fs.String("start", "", "range start")
	end := fs.String("end", "", "range end")
	_ = fs.Parse(args)
	id := fs.Arg(0)
	if id == "" {
		return fmt.Errorf("%s needs a target id", kind)
	}

	q := url.Values{}
	if *start != "" {
		q.Set("start", *start)
	}
	if *end != "" {
		q.Set("end", *end)
	}
	path := "/api/targets/" + url.PathEscape(id) + "/" + kind
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	if kind == "uptime" {
		var r struct {
			Start  time.Time `json:"start"`
			End    time.Time `json:"end"`
			Uptime float64   `json:"uptime"`
		}
		if err := c.do(http.MethodGet, path, nil, &r); err != nil {
			return err
		}
		fmt.Printf("%.2f%% from %s to %s\n", r.Uptime, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
		return nil
	}

	var days []struct {
		Date   time.Time `json:"date"`
		Uptime *float64  `json:"uptime_percent"`
		Label  string    `json:"status_label"`
	}
	if err := c.do(http.MethodGet, path, nil, &days); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tUPTIME\tSTATUS")
	for _, d := range days {
		p := "-"
		if d.Uptime != nil {
			p = fmt.Sprintf("%.2f%%", *d.Uptime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Date.Format("2006-01-02"), p, d.Label)
	}
	return tw.Flush()
}

func (c *client) check(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("check needs a target id")
	}
	var resp struct {
		Target struct {
			URL    string `json:"url"`
			Status string `json:"status"`
		} `json:"target"`
	}
	if err := c.do(http.MethodPost, "/api/targets/"+url.PathEscape(args[0])+"/check", nil, &resp); err != nil {
		return err
	}
	fmt.Printf("%s is %s\n", resp.Target.URL, resp.Target.Status)
	return nil
}
