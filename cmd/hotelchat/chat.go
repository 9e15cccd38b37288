package main

import (
	"bufio"
	"fmt"
	"strings"

	"hotelchat/internal/service"
)

// Run executes the chat command.
func (c *ChatCmd) Run(deps *Dependencies) error {
	conv := service.NewConversation("cli")

	if len(c.Message) > 0 {
		reply, err := deps.Agent.Reply(deps.Ctx, conv, strings.Join(c.Message, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(deps.Stdout, reply)
		return nil
	}

	fmt.Fprintln(deps.Stdout, "Ask about rooms. /reset starts over, /quit leaves.")
	scanner := bufio.NewScanner(deps.Stdin)
	for {
		fmt.Fprint(deps.Stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(deps.Stdout)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			conv.Reset()
			fmt.Fprintln(deps.Stdout, "Conversation cleared.")
			continue
		}

		reply, err := deps.Agent.Reply(deps.Ctx, conv, line)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", err)
			continue
		}
		fmt.Fprintln(deps.Stdout, reply)
	}
}
