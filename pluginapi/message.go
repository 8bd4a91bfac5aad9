package pluginapi

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/tesys/pluginapi/codec"
)

// Message is a topic-addressed envelope around an encoded payload.
//
// A Message is immutable. Methods that appear to change it return a copy, and
// a reply is always a new Message. Routing only ever reads Topic and Sender;
// the payload is opaque to the host.
type Message struct {
	id        string
	topic     string
	sender    string
	inReplyTo string
	codec     string
	payload   []byte
	metadata  map[string]string
	created   time.Time
}

// ID is a time-ordered unique identifier assigned at construction.
func (m Message) ID() string { return m.id }

// Topic is the addressing key matched against plugin capability queries.
func (m Message) Topic() string { return m.topic }

// Sender is the address replies to this message are delivered to. It is
// empty for messages nobody expects a reply to.
func (m Message) Sender() string { return m.sender }

// InReplyTo is the ID of the message this one answers, if any.
func (m Message) InReplyTo() string { return m.inReplyTo }

// Codec is the name of the codec the payload was encoded with.
func (m Message) Codec() string { return m.codec }

// Created reports when the message was built.
func (m Message) Created() time.Time { return m.created }

// Payload returns a copy of the encoded payload.
func (m Message) Payload() []byte {
	if m.payload == nil {
		return nil
	}
	return append([]byte(nil), m.payload...)
}

// Metadata returns a copy of the message metadata.
func (m Message) Metadata() map[string]string {
	return maps.Clone(m.metadata)
}

// Meta returns a single metadata value.
func (m Message) Meta(key string) (string, bool) {
	v, ok := m.metadata[key]
	return v, ok
}

// Decode decodes the payload into v using the codec recorded on the message.
func (m Message) Decode(v any) error {
	if m.codec == "" {
		return fmt.Errorf("message %s has no payload", m.id)
	}
	c, err := codec.Lookup(m.codec)
	if err != nil {
		return err
	}
	return c.Decode(m.payload, v)
}

// From returns a copy of m addressed from sender.
func (m Message) From(sender string) Message {
	m.sender = sender
	return m
}

// String renders the envelope without the payload.
func (m Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Message{id=%s topic=%q", m.id, m.topic)
	if m.sender != "" {
		fmt.Fprintf(&b, " sender=%q", m.sender)
	}
	if m.inReplyTo != "" {
		fmt.Fprintf(&b, " in_reply_to=%s", m.inReplyTo)
	}
	if m.codec != "" {
		fmt.Fprintf(&b, " codec=%s bytes=%d", m.codec, len(m.payload))
	}
	b.WriteString("}")
	return b.String()
}

// Builder assembles a Message. Errors are deferred to Finish, so calls can
// be chained.
type Builder struct {
	msg Message
	err error
}

// NewMessage starts building a message on topic.
func NewMessage(topic string) *Builder {
	return &Builder{msg: Message{topic: topic}}
}

// Reply starts building the answer to m. The reply goes back to m's sender
// on the same topic unless Topic is called.
func (m Message) Reply() *Builder {
	return &Builder{msg: Message{topic: m.topic, inReplyTo: m.id}}
}

// Topic overrides the topic.
func (b *Builder) Topic(topic string) *Builder {
	b.msg.topic = topic
	return b
}

// Sender sets the address replies are delivered to.
func (b *Builder) Sender(sender string) *Builder {
	b.msg.sender = sender
	return b
}

// WithPayload encodes v with c.
func (b *Builder) WithPayload(c codec.Codec, v any) *Builder {
	if b.err != nil {
		return b
	}
	data, err := c.Encode(v)
	if err != nil {
		b.err = fmt.Errorf("encode payload with %s: %w", c.Name(), err)
		return b
	}
	b.msg.codec = c.Name()
	b.msg.payload = data
	return b
}

// WithRawPayload attaches already encoded bytes produced by the named codec.
func (b *Builder) WithRawPayload(codecName string, data []byte) *Builder {
	b.msg.codec = codecName
	b.msg.payload = append([]byte(nil), data...)
	return b
}

// WithMeta sets one metadata entry.
func (b *Builder) WithMeta(key, value string) *Builder {
	if b.msg.metadata == nil {
		b.msg.metadata = make(map[string]string)
	}
	b.msg.metadata[key] = value
	return b
}

// Finish returns the built message or the first error recorded while
// building it.
func (b *Builder) Finish() (Message, error) {
	if b.err != nil {
		return Message{}, b.err
	}
	if b.msg.topic == "" {
		return Message{}, fmt.Errorf("message topic cannot be empty")
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Message{}, fmt.Errorf("generate message id: %w", err)
	}
	msg := b.msg
	msg.id = id.String()
	msg.created = time.Now()
	msg.metadata = maps.Clone(b.msg.metadata)
	return msg, nil
}

// MustFinish is Finish for messages that cannot fail to build, such as
// those with string payloads. It panics on error.
func (b *Builder) MustFinish() Message {
	msg, err := b.Finish()
	if err != nil {
		panic(err)
	}
	return msg
}
