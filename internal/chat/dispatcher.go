package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ent0n29/gearhead/internal/archive"
	"github.com/ent0n29/gearhead/internal/completion"
	"github.com/ent0n29/gearhead/internal/convo"
	"github.com/ent0n29/gearhead/internal/observability"
	"github.com/ent0n29/gearhead/internal/persona"
)

// MaxChunkRunes keeps each reply chunk under common chat platform limits.
const MaxChunkRunes = 1900

var ErrEmptyInput = errors.New("empty message")

// Inbound is a message addressed to the bot.
type Inbound struct {
	UserID      string
	DisplayName string
	Text        string
	SentAt      time.Time
}

// Reply is what the bot says back.
type Reply struct {
	ExchangeID string   `json:"exchange_id"`
	Command    Command  `json:"command"`
	Chunks     []string `json:"reply_chunks"`
	Remembered bool     `json:"remembered"`
	HasContext bool     `json:"has_context"`
}

type Config struct {
	Prefix      string
	BotName     string
	MaxTokens   int
	Temperature float64
}

// Dispatcher routes inbound messages to commands and runs the
// remember-and-complete flow for conversational ones.
type Dispatcher struct {
	cfg     Config
	store   *convo.Store
	client  completion.Client
	archive archive.Store
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewDispatcher(cfg Config, store *convo.Store, client completion.Client, archiveStore archive.Store, metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.BotName == "" {
		cfg.BotName = "Gearhead"
	}
	if archiveStore == nil {
		archiveStore = archive.DiscardStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:     cfg,
		store:   store,
		client:  client,
		archive: archiveStore,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

func (d *Dispatcher) Handle(ctx context.Context, in Inbound) (Reply, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return Reply{}, errors.New("missing user id")
	}
	if strings.TrimSpace(in.Text) == "" {
		return Reply{}, ErrEmptyInput
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		in.DisplayName = "User"
	}

	p := Parse(d.cfg.Prefix, in.Text)
	if d.metrics != nil {
		d.metrics.ChatRequests.WithLabelValues(string(p.Command)).Inc()
	}

	reply := Reply{ExchangeID: uuid.NewString(), Command: p.Command}
	var text string
	switch p.Command {
	case CommandConverse:
		return d.converse(ctx, in, reply, p.Args, persona.FallbackMention)
	case CommandAsk:
		if p.Args == "" {
			text = fmt.Sprintf("Usage: `%sask <your question>`", d.cfg.Prefix)
			break
		}
		return d.converse(ctx, in, reply, p.Args, persona.FallbackAsk)
	case CommandRoast:
		if p.Args == "" {
			text = fmt.Sprintf("You want me to roast your ride? Tell me what you're driving: `%sroast <car name>`", d.cfg.Prefix)
			break
		}
		return d.converse(ctx, in, reply, "Roast this car and tell me everything wrong with it: "+p.Args, persona.FallbackRoast)
	case CommandSuggest:
		if p.Args == "" {
			text = fmt.Sprintf("Tell me your budget or what kind of ride you want: `%ssuggest sports car under 30k`", d.cfg.Prefix)
			break
		}
		prompt := fmt.Sprintf("Suggest some good cars for: %s. Give me real recommendations with reasons why.", p.Args)
		return d.converse(ctx, in, reply, prompt, persona.FallbackSuggest)
	case CommandSpecs:
		if p.Args == "" {
			text = fmt.Sprintf("What car you want the specs on? `%sspecs Toyota Supra MK4`", d.cfg.Prefix)
			break
		}
		prompt := fmt.Sprintf("Give me detailed technical specs and performance info for: %s. I want the real numbers and details.", p.Args)
		return d.converse(ctx, in, reply, prompt, persona.FallbackSpecs)
	case CommandPing:
		var latency time.Duration
		if !in.SentAt.IsZero() {
			latency = max(d.now().Sub(in.SentAt), 0)
		}
		text = fmt.Sprintf("Pong! Latency: %dms", latency.Milliseconds())
	case CommandHello:
		text = fmt.Sprintf("Hello %s! How can I assist you today?", in.DisplayName)
	case CommandHelp:
		text = d.helpText()
	case CommandClear:
		d.store.ClearHistory(in.UserID)
		text = "Aight, I forgot everything we talked about."
	case CommandContext:
		text = d.store.ContextSummary(in.UserID)
	case CommandMemory:
		st := d.store.Stats()
		text = fmt.Sprintf("Memory: %s, %d active conversations", st.MemoryUsage, st.ActiveConversations)
	default:
		text = fmt.Sprintf("Unknown command. Try `%shelp` to see what I can do!", d.cfg.Prefix)
	}

	reply.Chunks = SplitReply(text, MaxChunkRunes)
	reply.HasContext = d.store.HasContext(in.UserID)
	return reply, nil
}

// converse sends the prompt with the user's remembered context and, only if
// the provider answered, records both sides of the exchange.
func (d *Dispatcher) converse(ctx context.Context, in Inbound, reply Reply, prompt, fallback string) (Reply, error) {
	start := d.now()
	turns := d.store.BuildContextMessages(in.UserID, prompt, in.DisplayName)
	d.observeStage(observability.StageContextBuild, d.now().Sub(start))

	callStart := d.now()
	text, err := d.client.Complete(ctx, completion.Request{
		System:      persona.Prompt,
		Turns:       turns,
		MaxTokens:   d.cfg.MaxTokens,
		Temperature: d.cfg.Temperature,
	})
	if d.metrics != nil {
		d.metrics.ObserveCompletion(d.now().Sub(callStart))
	}
	if err != nil {
		d.logger.Warn("completion failed",
			zap.String("user_id", in.UserID),
			zap.String("backend", d.client.Name()),
			zap.String("exchange_id", reply.ExchangeID),
			zap.Error(err),
		)
		if d.metrics != nil {
			d.metrics.CompletionErrors.WithLabelValues(d.client.Name()).Inc()
			d.metrics.MarkIndicator("completion_fallback")
		}
		reply.Chunks = []string{fallback}
		reply.HasContext = d.store.HasContext(in.UserID)
		return reply, nil
	}

	d.store.AddExchange(in.UserID, prompt, text, in.DisplayName)
	if d.metrics != nil {
		d.metrics.ObserveMemory(d.store.Stats())
	}
	d.archiveExchange(ctx, in, reply.ExchangeID, prompt, text)

	reply.Chunks = SplitReply(text, MaxChunkRunes)
	reply.Remembered = true
	reply.HasContext = true
	d.observeStage(observability.StageTurnTotal, d.now().Sub(start))
	d.logger.Debug("exchange remembered",
		zap.String("user_id", in.UserID),
		zap.String("exchange_id", reply.ExchangeID),
		zap.Int("turns_sent", len(turns)),
		zap.Int("chunks", len(reply.Chunks)),
	)
	return reply, nil
}

func (d *Dispatcher) archiveExchange(ctx context.Context, in Inbound, exchangeID, prompt, answer string) {
	now := d.now().UTC()
	records := []archive.TurnRecord{
		{UserID: in.UserID, DisplayName: in.DisplayName, ExchangeID: exchangeID, Role: string(convo.RoleUser), Content: prompt, CreatedAt: now},
		{UserID: in.UserID, DisplayName: in.DisplayName, ExchangeID: exchangeID, Role: string(convo.RoleAssistant), Content: answer, CreatedAt: now},
	}
	for _, rec := range records {
		if err := d.archive.SaveTurn(ctx, rec); err != nil {
			d.logger.Error("archive write failed",
				zap.String("user_id", in.UserID),
				zap.String("exchange_id", exchangeID),
				zap.Error(err),
			)
			if d.metrics != nil {
				d.metrics.ArchiveErrors.Inc()
			}
			return
		}
	}
}

func (d *Dispatcher) observeStage(stage string, dur time.Duration) {
	if d.metrics != nil {
		d.metrics.ObserveStage(stage, dur)
	}
}

func (d *Dispatcher) helpText() string {
	p := d.cfg.Prefix
	lines := []string{
		fmt.Sprintf("**%s - Your Hood Car Expert**", d.cfg.BotName),
		fmt.Sprintf("`%sping` - Check if I'm still breathing", p),
		fmt.Sprintf("`%sask <question>` - Ask me anything about cars", p),
		fmt.Sprintf("`%sroast <car>` - Let me tell you what's wrong with your ride", p),
		fmt.Sprintf("`%ssuggest <budget/type>` - I'll hook you up with real cars", p),
		fmt.Sprintf("`%sspecs <car>` - Get the real technical breakdown", p),
		fmt.Sprintf("`%scontext` - What I remember from our talk", p),
		fmt.Sprintf("`%sclear` - Make me forget our conversation", p),
		fmt.Sprintf("`%smemory` - How much I'm keeping in my head right now", p),
		fmt.Sprintf("`%shello` - Say what's up", p),
		"Or just talk to me about cars.",
		"",
		"**I know:** Engines, performance, mods, history, everything automotive",
		"**I hate:** EVs, ricers, fake car guys, weak engines",
	}
	return strings.Join(lines, "\n")
}
