package chat

import "strings"

type Command string

const (
	CommandConverse Command = "converse"
	CommandAsk      Command = "ask"
	CommandRoast    Command = "roast"
	CommandSuggest  Command = "suggest"
	CommandSpecs    Command = "specs"
	CommandPing     Command = "ping"
	CommandHello    Command = "hello"
	CommandHelp     Command = "help"
	CommandClear    Command = "clear"
	CommandContext  Command = "context"
	CommandMemory   Command = "memory"
	CommandUnknown  Command = "unknown"
)

var knownCommands = map[string]Command{
	"ask":     CommandAsk,
	"roast":   CommandRoast,
	"suggest": CommandSuggest,
	"specs":   CommandSpecs,
	"ping":    CommandPing,
	"hello":   CommandHello,
	"help":    CommandHelp,
	"clear":   CommandClear,
	"forget":  CommandClear,
	"context": CommandContext,
	"memory":  CommandMemory,
}

// Parsed is an inbound message split into a command and its argument text.
type Parsed struct {
	Command Command
	Name    string
	Args    string
}

// Parse recognises prefixed commands. Anything without the prefix is plain
// conversation with the bot.
func Parse(prefix, text string) Parsed {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Parsed{Command: CommandConverse, Args: text}
	}
	rest := strings.TrimSpace(strings.TrimPrefix(text, prefix))
	name, args, _ := strings.Cut(rest, " ")
	name = strings.ToLower(name)
	cmd, ok := knownCommands[name]
	if !ok {
		cmd = CommandUnknown
	}
	return Parsed{Command: cmd, Name: name, Args: strings.TrimSpace(args)}
}

// SplitReply cuts text into chunks of at most limit runes.
func SplitReply(text string, limit int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}
	chunks := make([]string, 0, len(runes)/limit+1)
	for len(runes) > 0 {
		n := min(limit, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
