package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"hotelchat/internal/model"
	"hotelchat/internal/seed"
)

// Run executes the load command.
func (c *LoadCmd) Run(deps *Dependencies) error {
	if (c.File == "") == !c.Seed {
		fmt.Fprintln(deps.Stderr, "usage: hotelchat load --file rooms.json | --seed")
		return errors.New("exactly one of --file or --seed is required")
	}

	var rooms []model.RoomInput
	var err error
	if c.Seed {
		rooms, err = seed.Rooms()
	} else {
		rooms, err = readRoomsFile(c.File)
	}
	if err != nil {
		return err
	}

	ids, err := deps.App.Loader.Load(deps.Ctx, rooms)
	if err != nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "Loaded %d rooms with %s\n", len(ids), deps.App.Embedder.Model())
	return nil
}

func readRoomsFile(path string) ([]model.RoomInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readRooms(f)
}

// readRooms accepts either a JSON array of rooms or one room object per line
func readRooms(r io.Reader) ([]model.RoomInput, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("no rooms in input: %w", err)
	}

	var rooms []model.RoomInput
	if first == '[' {
		if err := json.NewDecoder(br).Decode(&rooms); err != nil {
			return nil, fmt.Errorf("invalid rooms array: %w", err)
		}
		return rooms, nil
	}

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var room model.RoomInput
		if err := json.Unmarshal(text, &room); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rooms = append(rooms, room)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
