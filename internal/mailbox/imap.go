package mailbox

import (
	"context"
	"fmt"
	"sort"
	"time"

	"leadfollowup_backend/platform/config"
	"leadfollowup_backend/platform/logger"

	imap "github.com/BrianLeishman/go-imap"
)

// session is the part of an IMAP connection the mailbox uses.
type session interface {
	SelectFolder(folder string) error
	GetUIDs(search string) ([]int, error)
	GetEmails(uids ...int) (map[int]*imap.Email, error)
	MarkSeen(uid int) error
	Close() error
}

type dialFunc func(username, password, host string, port int) (session, error)

func dialIMAP(username, password, host string, port int) (session, error) {
	return imap.New(username, password, host, port)
}

// IMAPMailbox opens a short-lived IMAP session per operation.
type IMAPMailbox struct {
	host     string
	port     int
	username string
	password string
	folder   string
	timeout  time.Duration
	dial     dialFunc
	log      *logger.Logger
}

var _ Mailbox = (*IMAPMailbox)(nil)

func NewIMAP(cfg config.MailboxConfig, log *logger.Logger) *IMAPMailbox {
	imap.Verbose = false
	return &IMAPMailbox{
		host:     cfg.GetIMAPHost(),
		port:     cfg.GetIMAPPort(),
		username: cfg.GetIMAPUsername(),
		password: cfg.GetIMAPPassword(),
		folder:   cfg.GetIMAPFolder(),
		timeout:  cfg.GetIMAPTimeout(),
		dial:     dialIMAP,
		log:      log,
	}
}

// Address is the mailbox identity used for routing.
func (m *IMAPMailbox) Address() string {
	return m.username
}

// FetchUnread returns every UNSEEN message in the folder without changing flags.
func (m *IMAPMailbox) FetchUnread(ctx context.Context) ([]Message, error) {
	return runWithTimeout(ctx, m.timeout, func() ([]Message, error) {
		sess, err := m.open()
		if err != nil {
			return nil, err
		}
		defer m.close(sess)

		uids, err := sess.GetUIDs("UNSEEN")
		if err != nil {
			return nil, fmt.Errorf("imap search unseen: %w", err)
		}
		if len(uids) == 0 {
			return nil, nil
		}

		emails, err := sess.GetEmails(uids...)
		if err != nil {
			return nil, fmt.Errorf("imap fetch: %w", err)
		}

		messages := make([]Message, 0, len(emails))
		for uid, e := range emails {
			if e == nil {
				continue
			}
			fromAddress, fromName := firstAddress(e.From)
			messages = append(messages, Message{
				UID:         uid,
				MessageID:   e.MessageID,
				FromName:    fromName,
				FromAddress: fromAddress,
				Subject:     e.Subject,
				Text:        e.Text,
				HTML:        e.HTML,
			})
		}
		sort.Slice(messages, func(i, j int) bool { return messages[i].UID < messages[j].UID })
		return messages, nil
	})
}

// MarkSeen sets the \Seen flag on uid.
func (m *IMAPMailbox) MarkSeen(ctx context.Context, uid int) error {
	_, err := runWithTimeout(ctx, m.timeout, func() (struct{}, error) {
		sess, err := m.open()
		if err != nil {
			return struct{}{}, err
		}
		defer m.close(sess)

		if err := sess.MarkSeen(uid); err != nil {
			return struct{}{}, fmt.Errorf("imap mark seen %d: %w", uid, err)
		}
		return struct{}{}, nil
	})
	return err
}

func (m *IMAPMailbox) open() (session, error) {
	sess, err := m.dial(m.username, m.password, m.host, m.port)
	if err != nil {
		return nil, fmt.Errorf("imap connect %s:%d: %w", m.host, m.port, err)
	}
	if err := sess.SelectFolder(m.folder); err != nil {
		m.close(sess)
		return nil, fmt.Errorf("imap select %s: %w", m.folder, err)
	}
	return sess, nil
}

func (m *IMAPMailbox) close(sess session) {
	if err := sess.Close(); err != nil {
		m.log.Debug("imap close failed", "error", err)
	}
}

// firstAddress picks a deterministic entry from a parsed address header.
func firstAddress(addrs imap.EmailAddresses) (string, string) {
	if len(addrs) == 0 {
		return "", ""
	}
	keys := make([]string, 0, len(addrs))
	for addr := range addrs {
		keys = append(keys, addr)
	}
	sort.Strings(keys)
	return keys[0], addrs[keys[0]]
}
