// Package inbox reads analyst emails from an IMAP mailbox.
package inbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the IMAP connection settings.
type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	UseTLS        bool
	Mailbox       string
	SubjectFilter string
}

// Email is one fetched message with its body reduced to plain text.
type Email struct {
	UID     uint32
	From    string
	Subject string
	Body    string
	Date    time.Time
}

// Reader fetches unseen messages. Each call opens its own connection.
type Reader struct {
	cfg    Config
	logger zerolog.Logger
}

// NewReader creates a Reader; Port and Mailbox default to 993 and INBOX.
func NewReader(cfg Config) *Reader {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &Reader{cfg: cfg, logger: log.With().Str("component", "inbox").Logger()}
}

func (r *Reader) connect(ctx context.Context) (*client.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.cfg.Host == "" || r.cfg.Username == "" || r.cfg.Password == "" {
		return nil, fmt.Errorf("IMAP not configured")
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port)
	var (
		c   *client.Client
		err error
	)
	if r.cfg.UseTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to IMAP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}
	if err := c.Login(r.cfg.Username, r.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("IMAP login: %w", err)
	}
	return c, nil
}

// FetchUnread returns unseen messages matching the subject filter. Messages
// are not marked seen; call MarkSeen once a message has been handled.
// Messages that are filtered out or cannot be parsed are marked seen here so
// they are not downloaded again on the next poll.
func (r *Reader) FetchUnread(ctx context.Context) ([]Email, error) {
	c, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select(r.cfg.Mailbox, false)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", r.cfg.Mailbox, err)
	}
	if mbox.Messages == 0 {
		return []Email{}, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen messages: %w", err)
	}
	if len(uids) == 0 {
		return []Email{}, nil
	}
	r.logger.Debug().Int("count", len(uids)).Msg("found unseen messages")

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// BODY.PEEK keeps the \Seen flag untouched
	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	var fetched []*imap.Message
	for msg := range messages {
		fetched = append(fetched, msg)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	emails, skipped := r.sortMessages(fetched, section)
	if len(skipped) > 0 {
		if err := storeSeen(c, skipped...); err != nil {
			r.logger.Warn().Err(err).Int("count", len(skipped)).Msg("failed to mark skipped messages seen")
		} else {
			r.logger.Debug().Int("count", len(skipped)).Msg("marked skipped messages seen")
		}
	}
	return emails, nil
}

// sortMessages converts fetched messages into emails and returns the UIDs of
// the ones that will never be processed.
func (r *Reader) sortMessages(msgs []*imap.Message, section *imap.BodySectionName) ([]Email, []uint32) {
	var (
		emails  []Email
		skipped []uint32
	)
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if msg.Envelope == nil {
			skipped = append(skipped, msg.Uid)
			continue
		}
		if !matchesSubject(msg.Envelope.Subject, r.cfg.SubjectFilter) {
			skipped = append(skipped, msg.Uid)
			continue
		}
		raw := msg.GetBody(section)
		if raw == nil {
			r.logger.Warn().Uint32("uid", msg.Uid).Msg("message without body")
			skipped = append(skipped, msg.Uid)
			continue
		}
		body, err := ParseBody(raw)
		if err != nil {
			r.logger.Warn().Err(err).Uint32("uid", msg.Uid).Msg("failed to parse message body")
			skipped = append(skipped, msg.Uid)
			continue
		}
		from := ""
		if len(msg.Envelope.From) > 0 {
			from = msg.Envelope.From[0].Address()
		}
		emails = append(emails, Email{
			UID:     msg.Uid,
			From:    from,
			Subject: msg.Envelope.Subject,
			Body:    body,
			Date:    msg.Envelope.Date,
		})
	}
	return emails, skipped
}

// MarkSeen flags the message with the given UID as read.
func (r *Reader) MarkSeen(ctx context.Context, uid uint32) error {
	c, err := r.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(r.cfg.Mailbox, false); err != nil {
		return fmt.Errorf("select %s: %w", r.cfg.Mailbox, err)
	}
	if err := storeSeen(c, uid); err != nil {
		return fmt.Errorf("mark message %d seen: %w", uid, err)
	}
	return nil
}

// storeSeen adds \Seen to uids in the selected mailbox.
func storeSeen(c *client.Client, uids ...uint32) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return c.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil)
}

func matchesSubject(subject, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(subject), strings.ToLower(filter))
}

// readAll caps how much of one part is read.
func readAll(r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(r, maxPartSize)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
