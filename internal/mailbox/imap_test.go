package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadfollowup_backend/platform/logger"

	imap "github.com/BrianLeishman/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	uids     []int
	emails   map[int]*imap.Email
	seen     []int
	closed   bool
	folder   string
	fetchErr error
	block    chan struct{}
}

func (s *fakeSession) SelectFolder(folder string) error { s.folder = folder; return nil }

func (s *fakeSession) GetUIDs(string) ([]int, error) {
	if s.block != nil {
		<-s.block
	}
	return s.uids, nil
}

func (s *fakeSession) GetEmails(...int) (map[int]*imap.Email, error) {
	return s.emails, s.fetchErr
}

func (s *fakeSession) MarkSeen(uid int) error { s.seen = append(s.seen, uid); return nil }
func (s *fakeSession) Close() error           { s.closed = true; return nil }

func newTestMailbox(sess *fakeSession, timeout time.Duration) *IMAPMailbox {
	return &IMAPMailbox{
		host:     "imap.example.com",
		port:     993,
		username: "leads@acme.test",
		folder:   "INBOX",
		timeout:  timeout,
		log:      logger.Nop(),
		dial: func(string, string, string, int) (session, error) {
			return sess, nil
		},
	}
}

func TestFetchUnreadMapsAndOrdersMessages(t *testing.T) {
	sess := &fakeSession{
		uids: []int{7, 3},
		emails: map[int]*imap.Email{
			7: {MessageID: "<b@mail>", Subject: "Second", From: imap.EmailAddresses{"bob@example.com": "Bob"}, Text: "hi"},
			3: {MessageID: "<a@mail>", Subject: "First", From: imap.EmailAddresses{"ann@example.com": "Ann"}, HTML: "<p>hi</p>"},
		},
	}
	mb := newTestMailbox(sess, time.Second)

	messages, err := mb.FetchUnread(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, 3, messages[0].UID)
	assert.Equal(t, "ann@example.com", messages[0].FromAddress)
	assert.Equal(t, "Ann", messages[0].FromName)
	assert.Equal(t, "<b@mail>", messages[1].MessageID)
	assert.Equal(t, "INBOX", sess.folder)
	assert.True(t, sess.closed)
	assert.Empty(t, sess.seen, "fetching never changes flags")
}

func TestFetchUnreadPropagatesErrors(t *testing.T) {
	sess := &fakeSession{uids: []int{1}, fetchErr: errors.New("BAD")}
	_, err := newTestMailbox(sess, time.Second).FetchUnread(context.Background())
	require.Error(t, err)
}

func TestFetchUnreadTimesOut(t *testing.T) {
	sess := &fakeSession{block: make(chan struct{})}
	defer close(sess.block)

	_, err := newTestMailbox(sess, 20*time.Millisecond).FetchUnread(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
}

func TestMarkSeen(t *testing.T) {
	sess := &fakeSession{}
	require.NoError(t, newTestMailbox(sess, time.Second).MarkSeen(context.Background(), 42))
	assert.Equal(t, []int{42}, sess.seen)
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "leads@acme.test", newTestMailbox(&fakeSession{}, 0).Address())
}
