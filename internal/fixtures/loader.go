package fixtures

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoYAML []byte

func Load(path string) (Board, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Board{}, err
	}
	board, err := Parse(b)
	if err != nil {
		return Board{}, fmt.Errorf("load fixture %s: %w", path, err)
	}
	board.Path = path
	return board, nil
}

func Parse(data []byte) (Board, error) {
	var board Board
	if err := yaml.Unmarshal(data, &board); err != nil {
		return Board{}, err
	}
	applyDefaults(&board)
	if err := board.Validate(); err != nil {
		return Board{}, err
	}
	return board, nil
}

// Demo returns the board bundled with the binary.
func Demo() (Board, error) {
	board, err := Parse(demoYAML)
	if err != nil {
		return Board{}, fmt.Errorf("demo fixture: %w", err)
	}
	board.Path = "embedded:demo.yaml"
	return board, nil
}

func applyDefaults(board *Board) {
	if board.Kind == "" {
		board.Kind = BoardKind
	}
	if board.User.Name == "" {
		board.User.Name = "player"
	}
	for i := range board.Challenges {
		c := &board.Challenges[i]
		if c.Type == "" {
			c.Type = "standard"
		}
		for j := range c.Flags {
			if c.Flags[j].Type == "" {
				c.Flags[j].Type = "static"
			}
		}
	}
}
