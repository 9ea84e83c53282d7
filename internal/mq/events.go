package mq

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventImageUploaded = "image.uploaded"
	EventImageUpdated  = "image.updated"
	EventImageDeleted  = "image.deleted"

	attrEventType   = "event_type"
	attrContentType = "content_type"
	attrTitle       = "title"

	contentTypeJSON = "application/json"
)

// ImageEvent describes a change to an image.
type ImageEvent struct {
	Type     string    `json:"type"`
	Title    string    `json:"title"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}

// Publisher publishes image events on one channel. A nil Publisher drops
// every event, which is how messaging is switched off.
type Publisher struct {
	mq      *MQ
	channel string
}

func NewPublisher(mq *MQ, channel string) *Publisher {
	if mq == nil {
		return nil
	}
	return &Publisher{mq: mq, channel: channel}
}

func (p *Publisher) PublishImageEvent(ctx context.Context, event ImageEvent) error {
	if p == nil {
		return nil
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.mq.Publish(ctx, p.channel, data, map[string]string{
		attrEventType:   event.Type,
		attrContentType: contentTypeJSON,
		attrTitle:       event.Title,
	})
	return err
}

// DecodeImageEvent parses a message produced by PublishImageEvent. Fields
// missing from the body are taken from the message attributes.
func DecodeImageEvent(msg Message) (ImageEvent, error) {
	var event ImageEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return ImageEvent{}, err
	}
	if event.Type == "" {
		event.Type = msg.Attributes[attrEventType]
	}
	if event.Title == "" {
		event.Title = msg.Attributes[attrTitle]
	}
	return event, nil
}
