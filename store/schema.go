package store

// Schema is the DDL for the timeline database.
const Schema = `
CREATE TABLE IF NOT EXISTS threads (
    id              TEXT PRIMARY KEY,
    position        INTEGER NOT NULL,
    subject         TEXT,
    labels          TEXT,
    first_timestamp TEXT,
    last_timestamp  TEXT,
    message_count   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
    thread_id    TEXT NOT NULL REFERENCES threads(id),
    id           TEXT NOT NULL,
    position     INTEGER NOT NULL,
    timestamp    TEXT,
    sender       TEXT,
    to_addr      TEXT,
    cc           TEXT,
    subject      TEXT,
    body         TEXT,
    duplicate_of TEXT,
    PRIMARY KEY (thread_id, id)
);

CREATE TABLE IF NOT EXISTS attachments (
    thread_id  TEXT NOT NULL,
    message_id TEXT NOT NULL,
    position   INTEGER NOT NULL,
    filename   TEXT NOT NULL,
    media_type TEXT,
    status     TEXT NOT NULL,
    pages      INTEGER,
    text       TEXT,
    error      TEXT,
    PRIMARY KEY (thread_id, message_id, position),
    FOREIGN KEY (thread_id, message_id) REFERENCES messages(thread_id, id)
);

CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
CREATE INDEX IF NOT EXISTS idx_attachments_status ON attachments(status);
`
