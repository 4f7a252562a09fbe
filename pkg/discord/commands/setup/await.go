package setup

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/files"
)

// awaitMessage waits for the next message from userID in channelID, up to
// timeout. The gateway handler is removed before returning on every path.
// Built on AddHandler because discordgo has no collector primitive.
func awaitMessage(s *discordgo.Session, channelID, userID string, timeout time.Duration) (*discordgo.Message, error) {
	result := make(chan *discordgo.Message, 1)

	remove := s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.ChannelID != channelID || m.Author == nil || m.Author.ID != userID {
			return
		}
		select {
		case result <- m.Message:
		default:
		}
	})
	defer remove()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-result:
		return msg, nil
	case <-timer.C:
		return nil, files.ErrAwaitTimeout
	}
}
