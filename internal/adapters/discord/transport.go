// Package discord delivers notifications as Discord direct messages and
// serves the bot's slash commands.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// commandTimeout bounds the work behind one slash command.
const commandTimeout = 5 * time.Second

// Commands is the application side of the slash commands.
type Commands interface {
	Subscribe(ctx context.Context, id domain.RecipientID) (bool, error)
	Unsubscribe(ctx context.Context, id domain.RecipientID) error
	SummaryText(ctx context.Context) string
	DetailText(ctx context.Context) string
}

// session is the subset of *discordgo.Session the transport uses.
type session interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

var _ ports.Deliverer = (*Transport)(nil)

// Transport implements ports.Deliverer over Discord DMs.
type Transport struct {
	guildID string
	logger  ports.Logger

	dg  *discordgo.Session
	api session

	mu   sync.RWMutex
	cmds Commands

	// dmChannels caches recipient -> DM channel id.
	dmChannels sync.Map
}

// New creates a transport for the bot token. Call Open to connect.
func New(token, guildID string, logger ports.Logger) (*Transport, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: discord token is empty", domain.ErrInvalidConfig)
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsDirectMessages)

	t := newTransport(dg, strings.TrimSpace(guildID), logger)
	t.dg = dg
	dg.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		t.handleCommand(i.Interaction)
	})
	return t, nil
}

func newTransport(api session, guildID string, logger ports.Logger) *Transport {
	return &Transport{guildID: guildID, logger: logger, api: api}
}

// Open connects the gateway session and registers the slash commands that
// drive cmds. Command registration failures are logged, not returned.
func (t *Transport) Open(ctx context.Context, cmds Commands) error {
	t.mu.Lock()
	t.cmds = cmds
	t.mu.Unlock()

	if t.dg == nil {
		return nil
	}
	if err := t.dg.Open(); err != nil {
		return err
	}
	if err := t.registerCommands(ctx); err != nil {
		t.logger.Warn("discord command registration failed", ports.Err(err))
	}
	t.logger.Info("discord transport started", ports.String("guild_id", t.guildID))
	return nil
}

// Close disconnects the gateway session.
func (t *Transport) Close() error {
	if t.dg == nil {
		return nil
	}
	return t.dg.Close()
}

// Deliver sends message as a DM to the user to.
func (t *Transport) Deliver(ctx context.Context, to domain.RecipientID, message string) error {
	channelID, err := t.dmChannel(ctx, string(to))
	if err != nil {
		return fmt.Errorf("%w: open dm with %s: %v", domain.ErrDeliveryFailed, to, err)
	}
	if _, err := t.api.ChannelMessageSend(channelID, message, discordgo.WithContext(ctx)); err != nil {
		t.dmChannels.Delete(string(to))
		return fmt.Errorf("%w: send to %s: %v", domain.ErrDeliveryFailed, to, err)
	}
	return nil
}

func (t *Transport) dmChannel(ctx context.Context, userID string) (string, error) {
	if v, ok := t.dmChannels.Load(userID); ok {
		return v.(string), nil
	}
	ch, err := t.api.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	if ch == nil || ch.ID == "" {
		return "", errors.New("empty dm channel")
	}
	t.dmChannels.Store(userID, ch.ID)
	return ch.ID, nil
}

func (t *Transport) registerCommands(ctx context.Context) error {
	appID := ""
	if t.dg.State != nil && t.dg.State.User != nil {
		appID = t.dg.State.User.ID
	}
	if appID == "" {
		return errors.New("missing application id")
	}
	// An empty guild id registers global commands.
	_, err := t.dg.ApplicationCommandBulkOverwrite(appID, t.guildID, commandDefinitions(), discordgo.WithContext(ctx))
	return err
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: "start", Description: "Subscribe to power outage notifications"},
		{Name: "stop", Description: "Unsubscribe from power outage notifications"},
		{Name: "status", Description: "Is the power on right now?"},
		{Name: "details", Description: "Detailed power status"},
	}
}

func (t *Transport) handleCommand(i *discordgo.Interaction) {
	if i == nil {
		return
	}
	if i.GuildID != "" && t.guildID != "" && i.GuildID != t.guildID {
		return
	}
	userID := interactionUserID(i)
	if userID == "" {
		return
	}

	t.mu.RLock()
	cmds := t.cmds
	t.mu.RUnlock()
	if cmds == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var reply string
	name := i.ApplicationCommandData().Name
	switch name {
	case "start":
		isNew, err := cmds.Subscribe(ctx, domain.RecipientID(userID))
		switch {
		case err != nil:
			t.logger.Error("subscribe failed", ports.String("user", userID), ports.Err(err))
			reply = "Could not subscribe you right now, please try again later."
		case isNew:
			reply = "✅ You are subscribed. I will DM you when the power goes out or comes back.\n\n" + cmds.SummaryText(ctx)
		default:
			reply = "You are already subscribed.\n\n" + cmds.SummaryText(ctx)
		}
	case "stop":
		if err := cmds.Unsubscribe(ctx, domain.RecipientID(userID)); err != nil {
			t.logger.Error("unsubscribe failed", ports.String("user", userID), ports.Err(err))
			reply = "Could not unsubscribe you right now, please try again later."
		} else {
			reply = "🔕 You will no longer receive notifications. Use /start to subscribe again."
		}
	case "status":
		reply = cmds.SummaryText(ctx)
	case "details":
		reply = cmds.DetailText(ctx)
	default:
		return
	}

	if err := t.respondEphemeral(i, reply); err != nil {
		t.logger.Warn("discord interaction response failed",
			ports.String("command", name),
			ports.Err(err),
		)
	}
}

func (t *Transport) respondEphemeral(i *discordgo.Interaction, msg string) error {
	return t.api.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// interactionUserID returns the invoking user for guild and DM interactions.
func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
