package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Client wraps the Slack SDK client for the calls the reply flow makes
type Client struct {
	client *slack.Client
}

// NewClient creates a new Slack client with bot token
func NewClient(botToken string, opts ...slack.Option) *Client {
	return &Client{
		client: slack.New(botToken, opts...),
	}
}

// OpenModal opens a modal in response to an interaction. Slack rejects the
// call once the trigger id is older than about three seconds.
func (c *Client) OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	if _, err := c.client.OpenViewContext(ctx, triggerID, view); err != nil {
		return fmt.Errorf("open view: %w", err)
	}
	return nil
}

// UpdateModal replaces the content of a modal previously opened with externalID
func (c *Client) UpdateModal(ctx context.Context, externalID string, view slack.ModalViewRequest) error {
	if _, err := c.client.UpdateViewContext(ctx, view, externalID, "", ""); err != nil {
		return fmt.Errorf("update view %s: %w", externalID, err)
	}
	return nil
}

// PostMessage posts a message to a Slack channel. text is the notification
// fallback when blocks are present.
func (c *Client) PostMessage(ctx context.Context, channelID, text string, blocks ...slack.Block) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}

	if _, _, err := c.client.PostMessageContext(ctx, channelID, opts...); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}
