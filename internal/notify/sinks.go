package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"yaoundeconnect.org/internal/mail"
	"yaoundeconnect.org/internal/stream"
)

// StreamSink publishes events to the in-process fan-out hub feeding SSE and
// WebSocket clients.
type StreamSink struct {
	hub *stream.Stream
}

// NewStreamSink wraps a stream hub.
func NewStreamSink(hub *stream.Stream) *StreamSink {
	return &StreamSink{hub: hub}
}

func (s *StreamSink) Name() string { return "stream" }

func (s *StreamSink) Deliver(ctx context.Context, evt Event) error {
	s.hub.Publish(stream.Event{
		Type:      evt.Type,
		POIID:     evt.POIID,
		POIName:   evt.POIName,
		ActorID:   evt.ActorID,
		Detail:    evt.Detail,
		Timestamp: evt.Timestamp,
	})
	return nil
}

// Sender delivers one message; *mail.Mailer satisfies it.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// EmailSink mails moderation decisions and account messages. Moderation
// events carry the POI creator's id, not their address, so the sink resolves
// it through the lookup; events that cannot name a recipient are skipped.
type EmailSink struct {
	sender        Sender
	verifyBaseURL string
	lookup        RecipientLookup
}

// NewEmailSink wraps a sender. lookup may be nil, in which case events
// without an explicit RecipientEmail are skipped.
func NewEmailSink(sender Sender, verifyBaseURL string, lookup RecipientLookup) *EmailSink {
	return &EmailSink{sender: sender, verifyBaseURL: verifyBaseURL, lookup: lookup}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, evt Event) error {
	to, err := s.recipient(ctx, evt)
	if err != nil {
		return err
	}
	if to == "" {
		return nil
	}
	switch evt.Type {
	case EventUserVerify:
		body, err := mail.RenderVerifyEmail(s.verifyBaseURL, evt.Detail)
		if err != nil {
			return err
		}
		return s.sender.Send(to, "Confirmez votre adresse e-mail", body)
	case EventUserWelcome:
		body, err := mail.RenderWelcomeEmail()
		if err != nil {
			return err
		}
		return s.sender.Send(to, "Bienvenue sur yaoundeConnect", body)
	case EventUserPassword:
		body, err := mail.RenderPasswordEmail()
		if err != nil {
			return err
		}
		return s.sender.Send(to, "Votre mot de passe a été modifié", body)
	case EventPOIApproved, EventPOIRejected:
		subject, body, err := mail.RenderModerationEmail(evt.Type, evt.POIName, evt.Detail)
		if err != nil {
			return err
		}
		return s.sender.Send(to, subject, body)
	}
	return nil
}

func (s *EmailSink) recipient(ctx context.Context, evt Event) (string, error) {
	if evt.RecipientEmail != "" {
		return evt.RecipientEmail, nil
	}
	if evt.RecipientID == "" || s.lookup == nil {
		return "", nil
	}
	return s.lookup(ctx, evt.RecipientID)
}

// KafkaSink publishes events to a topic for downstream consumers. The
// producer follows the at-most-once posture of the dispatcher: no retries.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink builds a sink writing to the given broker and topic.
func NewKafkaSink(broker, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, evt Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.POIID),
		Value: value,
		Time:  evt.Timestamp,
	})
}

// Close releases the underlying producer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
