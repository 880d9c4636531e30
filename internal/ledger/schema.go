package ledger

// Schema contains SQL schema definitions for the ledger
const Schema = `
-- One row per submitted message
CREATE TABLE IF NOT EXISTS sent_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    subject TEXT,
    recipients TEXT NOT NULL,
    accepted TEXT NOT NULL,
    rejected TEXT NOT NULL,
    reply_mailbox TEXT,
    reply_uid INTEGER,
    reply_message_id TEXT,
    saved_to TEXT,
    sent_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sent_messages_sent_at ON sent_messages(sent_at);
CREATE INDEX IF NOT EXISTS idx_sent_messages_reply ON sent_messages(reply_mailbox, reply_uid);

-- Full-text search index
CREATE VIRTUAL TABLE IF NOT EXISTS sent_messages_fts USING fts5(
    subject,
    recipients,
    content='sent_messages',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS sent_messages_fts_insert AFTER INSERT ON sent_messages BEGIN
    INSERT INTO sent_messages_fts(rowid, subject, recipients)
    VALUES (new.id, new.subject, new.recipients);
END;

CREATE TRIGGER IF NOT EXISTS sent_messages_fts_delete AFTER DELETE ON sent_messages BEGIN
    INSERT INTO sent_messages_fts(sent_messages_fts, rowid, subject, recipients)
    VALUES ('delete', old.id, old.subject, old.recipients);
END;
`
