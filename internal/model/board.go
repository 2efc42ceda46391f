package model

import (
	"regexp"
	"strconv"
)

type Cell struct {
	Name  string      `json:"name"`
	Walls []Direction `json:"walls,omitempty"`

	// CheckpointNumber is set by boards that tag checkpoints explicitly.
	CheckpointNumber int `json:"checkpointNumber,omitempty"`
}

type Board struct {
	Name   string   `json:"name"`
	Spaces [][]Cell `json:"spaces"`
}

func (b Board) Clone() Board {
	out := Board{Name: b.Name}
	if b.Spaces == nil {
		return out
	}
	out.Spaces = make([][]Cell, len(b.Spaces))
	for i, row := range b.Spaces {
		out.Spaces[i] = make([]Cell, len(row))
		for j, c := range row {
			out.Spaces[i][j] = c
			out.Spaces[i][j].Walls = append([]Direction(nil), c.Walls...)
		}
	}
	return out
}

var checkpointName = regexp.MustCompile(`(?i)^checkpoint\s*-?\s*(\d+)$`)

// Checkpoint returns the checkpoint number of the cell, if it is one.
func (c Cell) Checkpoint() (int, bool) {
	if c.CheckpointNumber > 0 {
		return c.CheckpointNumber, true
	}
	m := checkpointName.FindStringSubmatch(c.Name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// MaxCheckpoint scans every cell. Zero means the board has no checkpoints.
func (b Board) MaxCheckpoint() int {
	highest := 0
	for _, row := range b.Spaces {
		for _, c := range row {
			if n, ok := c.Checkpoint(); ok && n > highest {
				highest = n
			}
		}
	}
	return highest
}
