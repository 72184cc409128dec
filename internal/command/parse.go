package command

import (
	"fmt"
	"strconv"
	"strings"

	perrors "github.com/p-blackswan/channel-sweeper/internal/errors"
)

// Command is a parsed chat command.
type Command struct {
	Name string
	Args []string
}

// Parse splits a prefixed message into a command. Messages without the
// prefix, or with nothing after it, are not commands.
func Parse(prefix, text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// parseMinutes converts an argument to minutes. Zero and negative values
// are returned as is.
func parseMinutes(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("minutes %q: %w", arg, perrors.ErrInvalidInput)
	}
	return n, nil
}

// parseChannelRef accepts a raw channel ID or a channel mention such as
// <#C024BE91L|general> (Slack) or <#81384788765712384> (Discord).
func parseChannelRef(arg string) (string, error) {
	ref := strings.TrimSpace(arg)
	if strings.HasPrefix(ref, "<#") && strings.HasSuffix(ref, ">") {
		ref = strings.TrimSuffix(strings.TrimPrefix(ref, "<#"), ">")
		ref, _, _ = strings.Cut(ref, "|")
	}
	if ref == "" || strings.ContainsAny(ref, " <>#|") {
		return "", fmt.Errorf("channel %q: %w", arg, perrors.ErrInvalidInput)
	}
	return ref, nil
}
