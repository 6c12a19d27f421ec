package gateway

import (
	"context"
	"log"

	"github.com/bwmarrin/discordgo"
)

type DiscordGateway struct {
	Session *discordgo.Session
	Runner  Runner
}

func NewDiscordGateway(token string, runner Runner) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	return &DiscordGateway{
		Session: session,
		Runner:  runner,
	}, nil
}

func (dg *DiscordGateway) Start() error {
	dg.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author.ID == s.State.User.ID {
			return
		}

		log.Printf("[%s] %s", m.Author.Username, m.Content)

		response, err := dg.Runner.Run(context.Background(), m.ChannelID, m.Content)
		if err != nil {
			log.Printf("Error running task: %v", err)
			response = "I'm having trouble browsing right now..."
		}

		if _, err := s.ChannelMessageSend(m.ChannelID, response); err != nil {
			log.Printf("Error sending Discord reply: %v", err)
		}
	})

	if err := dg.Session.Open(); err != nil {
		return err
	}

	log.Printf("Discord gateway connected")
	return nil
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	_, err := dg.Session.ChannelMessageSend(chatID, text)
	return err
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}
