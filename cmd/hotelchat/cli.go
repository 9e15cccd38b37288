package main

import (
	"context"
	"io"

	"hotelchat/internal/app"
	"hotelchat/internal/service"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	App    *app.App
	Agent  *service.Agent
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose bool `short:"v" help:"Log at the configured LOG_LEVEL instead of warnings only"`

	Load      LoadCmd      `cmd:"" help:"Embed and store rooms from a file or the demo set"`
	Search    SearchCmd    `cmd:"" help:"Search rooms the way the assistant does"`
	Chat      ChatCmd      `cmd:"" help:"Chat with the hotel assistant"`
	Reembed   ReembedCmd   `cmd:"" help:"Recompute every room vector with the configured embedder"`
	Locations LocationsCmd `cmd:"" help:"List the locations in the catalog"`
}

// LoadCmd is the "load" subcommand.
type LoadCmd struct {
	File string `short:"f" help:"JSON array or JSON Lines file of rooms"`
	Seed bool   `help:"Load the built-in demo rooms"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Query    string  `arg:"" help:"What the guest is looking for"`
	Location string  `short:"l" help:"Location filter; misspellings are corrected"`
	MaxPrice float64 `short:"p" name:"max-price" default:"-1" help:"Maximum nightly price (negative for no limit)"`
}

// ChatCmd is the "chat" subcommand.
type ChatCmd struct {
	Message []string `arg:"" optional:"" help:"Send one message and exit instead of starting a session"`
}

// ReembedCmd is the "reembed" subcommand.
type ReembedCmd struct{}

// LocationsCmd is the "locations" subcommand.
type LocationsCmd struct{}
