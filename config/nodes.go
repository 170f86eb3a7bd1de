package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Node is one cluster node as read from the node source. Immutable for the
// lifetime of a run.
type Node struct {
	Index int
	Host  string
	// Slots is the optional per-node slot count from the node file's second
	// column. Collaborator-interpreted; the core ignores it.
	Slots int
}

// ReadNodeFile parses a line-oriented host list. The first whitespace
// delimited token of each non-blank line is the hostname or IP; an optional
// second integer token is kept as the slot count. Lines starting with '#'
// are skipped.
func ReadNodeFile(path string) ([]Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Reason: "unreadable node source", Err: err}
	}
	defer f.Close()

	var nodes []Node
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		node := Node{Index: len(nodes), Host: fields[0]}
		if len(fields) > 1 {
			if slots, err := strconv.Atoi(fields[1]); err == nil {
				node.Slots = slots
			}
		}
		nodes = append(nodes, node)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ConfigurationError{Path: path, Reason: "failed reading node source", Err: err}
	}

	if len(nodes) < 2 {
		return nil, &ConfigurationError{
			Path:   path,
			Reason: fmt.Sprintf("need at least 2 nodes, found %d", len(nodes)),
		}
	}
	return nodes, nil
}

// Hosts returns the hostnames in index order.
func Hosts(nodes []Node) []string {
	hosts := make([]string, len(nodes))
	for i, n := range nodes {
		hosts[i] = n.Host
	}
	return hosts
}
