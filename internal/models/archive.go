package models

import "time"

// QueryChatHistory is the archived snapshot of a query's chat thread. There
// is at most one per query.
type QueryChatHistory struct {
	ID            string       `db:"id" json:"id"`
	QueryID       string       `db:"query_id" json:"queryId"`
	AppNo         string       `db:"app_no" json:"appNo"`
	CustomerName  string       `db:"customer_name" json:"customerName"`
	Branch        string       `db:"branch" json:"branch"`
	MarkedForTeam string       `db:"marked_for_team" json:"markedForTeam"`
	QueryStatus   string       `db:"query_status" json:"queryStatus"`
	ArchiveReason string       `db:"archive_reason" json:"archiveReason"`
	ArchivedBy    string       `db:"archived_by" json:"archivedBy"`
	Messages      ChatMessages `db:"messages" json:"messages"`
	MessageCount  int          `db:"message_count" json:"messageCount"`
	ArchivedAt    time.Time    `db:"archived_at" json:"archivedAt"`
}

// ArchiveMeta is the denormalized query metadata copied into an archive.
type ArchiveMeta struct {
	AppNo         string
	CustomerName  string
	Branch        string
	MarkedForTeam string
	QueryStatus   string
	ArchivedBy    string
}

// MetaFromQuery extracts archive metadata from q.
func MetaFromQuery(q *Query) ArchiveMeta {
	if q == nil {
		return ArchiveMeta{}
	}
	return ArchiveMeta{
		AppNo:         q.AppNo,
		CustomerName:  q.CustomerName,
		Branch:        q.Branch,
		MarkedForTeam: string(q.MarkedForTeam),
		QueryStatus:   string(q.Status),
	}
}

// ArchiveFilter narrows archive listings.
type ArchiveFilter struct {
	AppNo         string
	CustomerName  string
	MarkedForTeam string
	ArchiveReason string
	Limit         int
	Offset        int
}
