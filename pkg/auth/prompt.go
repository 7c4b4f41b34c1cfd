package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// PromptLine prints label and reads one trimmed, non-empty line from r.
func PromptLine(label string, r io.Reader) (string, error) {
	fmt.Printf("%s: ", label)

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return "", errors.New("no input received")
	}

	value := strings.TrimSpace(scanner.Text())
	if value == "" {
		return "", errors.New("input cannot be empty")
	}
	return value, nil
}
