// Command activate looks up a conversation by a pasted id and, unless
// -lookup is given, overrides it to approved.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/checkerhub/checkerhub/clients/go/checkerhub"
)

func main() {
	baseURL := flag.String("url", getenv("CHECKERHUB_URL", "http://localhost:8080"), "checkerhub base URL")
	token := flag.String("token", os.Getenv("CHECKERHUB_TOKEN"), "session token of an operator")
	username := flag.String("username", os.Getenv("CHECKERHUB_USERNAME"), "operator username, used when no token is set")
	lookupOnly := flag.Bool("lookup", false, "only show the conversation")
	asJSON := flag.Bool("json", false, "print the raw result")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	raw := strings.Join(flag.Args(), " ")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := checkerhub.NewClient(*baseURL, *token)
	if client.Token == "" {
		if *username == "" {
			exitOnError(fmt.Errorf("set -token or -username"))
		}
		_, err := client.Login(ctx, *username, os.Getenv("CHECKERHUB_PASSWORD"))
		exitOnError(err)
	}

	lookup, err := client.Lookup(ctx, raw)
	exitOnError(err)
	if *lookupOnly || lookup.AlreadyActive {
		report(lookup.Conversation.ID.String(), string(lookup.Conversation.Status), lookup.AlreadyActive, false, *asJSON, lookup)
		return
	}

	res, err := client.Activate(ctx, raw)
	exitOnError(err)
	report(res.Conversation.ID.String(), string(res.Conversation.Status), res.AlreadyActive, res.Activated, *asJSON, res)
}

func report(id, status string, already, activated, asJSON bool, v interface{}) {
	if asJSON {
		printJSON(v)
		return
	}
	switch {
	case activated:
		fmt.Printf("%s activated (now %s)\n", id, status)
	case already:
		fmt.Printf("%s already active (%s)\n", id, status)
	default:
		fmt.Printf("%s is %s\n", id, status)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: activate [flags] <conversation-id>

Looks up a conversation and overrides it to approved. The id may be pasted
with a leading '#', quotes or brackets.

Environment:
  CHECKERHUB_URL       Base URL (default http://localhost:8080)
  CHECKERHUB_TOKEN     Operator session token
  CHECKERHUB_USERNAME  Operator username (with CHECKERHUB_PASSWORD)

Flags:`)
	flag.PrintDefaults()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
