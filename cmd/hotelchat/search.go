package main

import (
	"fmt"
	"strings"
)

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	var location *string
	if loc := strings.TrimSpace(c.Location); loc != "" {
		location = &loc
	}
	var maxPrice *float64
	if c.MaxPrice >= 0 {
		maxPrice = &c.MaxPrice
	}

	fmt.Fprintln(deps.Stdout, deps.App.Tool.FindRooms(deps.Ctx, c.Query, location, maxPrice))
	return nil
}

// Run executes the locations command.
func (c *LocationsCmd) Run(deps *Dependencies) error {
	locs, err := deps.App.Locations.KnownLocations(deps.Ctx)
	if err != nil {
		return err
	}

	if len(locs) == 0 {
		fmt.Fprintln(deps.Stdout, "No rooms loaded. Use 'hotelchat load' to add some.")
		return nil
	}

	for _, loc := range locs {
		fmt.Fprintln(deps.Stdout, loc)
	}
	return nil
}

// Run executes the reembed command.
func (c *ReembedCmd) Run(deps *Dependencies) error {
	n, err := deps.App.Loader.Reembed(deps.Ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "Re-embedded %d rooms with %s\n", n, deps.App.Embedder.Model())
	return nil
}
