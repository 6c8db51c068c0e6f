// Package docs embeds the user documentation of immotax.
//
// The index is readme.md: every line "* name: description" declares the
// topic stored in name.md.
package docs

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed *.md
var docs embed.FS

// Index is the name of the topic listing the others.
const Index = "readme"

// Topic is a documentation entry of the index.
type Topic struct {
	Name        string
	Description string
}

var topicLine = regexp.MustCompile(`^\*\s+([^:]+):\s*(.*)$`)

// Topics returns the topics declared in the index, in their order.
func Topics() ([]Topic, error) {
	content, err := docs.ReadFile(Index + ".md")
	if err != nil {
		return nil, fmt.Errorf("cannot read the documentation index: %w", err)
	}
	var topics []Topic
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		if m := topicLine.FindStringSubmatch(scanner.Text()); m != nil {
			topics = append(topics, Topic{Name: strings.TrimSpace(m[1]), Description: m[2]})
		}
	}
	return topics, scanner.Err()
}

// Names returns the names of the topics of the index.
func Names() []string {
	topics, _ := Topics()
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Name
	}
	return names
}

// Get returns the markdown of a topic.
func Get(name string) (string, error) {
	content, err := docs.ReadFile(name + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown topic %q", name)
	}
	return string(content), nil
}

// Join returns the markdown of several topics, one after the other. "*"
// stands for every topic of the index.
func Join(names ...string) (string, error) {
	var b strings.Builder
	for _, name := range names {
		expanded := []string{name}
		if name == "*" {
			expanded = Names()
		}
		for _, n := range expanded {
			content, err := Get(n)
			if err != nil {
				return "", err
			}
			b.WriteString(content)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
