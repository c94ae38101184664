package model

import (
	"errors"
	"time"
)

// ErrMessageUnreadable marks envelopes that carry one unreadable message
// rather than a whole thread.
var ErrMessageUnreadable = errors.New("message could not be read")

// ThreadRecord is one archived email thread as read from disk.
type ThreadRecord struct {
	ID       string
	Labels   []string
	Messages []MessageRecord
	Source   string
}

// Headers carries the message headers the timeline cares about.
type Headers struct {
	From    string
	To      string
	Cc      string
	Subject string
	Date    string
}

// MessageRecord is one raw email within a thread, in stored order.
type MessageRecord struct {
	ID        string
	ThreadID  string
	Index     int
	Timestamp time.Time
	Headers   Headers
	Labels    []string
	Parts     []ContentPart
}

// ContentPart is one node of a message's MIME tree. Data holds the payload
// after transfer decoding but before charset decoding.
type ContentPart struct {
	MediaType    string
	Charset      string
	Filename     string
	AttachmentID string
	Data         []byte
	Parts        []ContentPart
}

// IsAttachment reports whether the part carries a file rather than body text.
func (p ContentPart) IsAttachment() bool {
	return p.Filename != "" || p.AttachmentID != ""
}

// Walk visits p and all of its descendants depth-first in part order.
func (p ContentPart) Walk(fn func(ContentPart)) {
	fn(p)
	for _, child := range p.Parts {
		child.Walk(fn)
	}
}

// AttachmentRef locates one attachment of a message. Exactly one of Path
// and Data is set: archived attachments live on disk, mbox attachments are
// carried inline.
type AttachmentRef struct {
	ThreadID  string
	MessageID string
	Filename  string
	MediaType string
	Path      string
	Data      []byte
}

// Envelope wraps a thread alongside an optional error encountered while loading it.
type Envelope struct {
	Thread ThreadRecord
	Source string
	Err    error
}
