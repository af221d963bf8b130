package record

// Log is the append-only sequence of records of one session. It is not safe
// for concurrent use; the session controller serialises access.
type Log struct {
	records []Record
}

// Append adds r at the end of the log.
func (l *Log) Append(r Record) {
	l.records = append(l.records, r)
}

// Reset empties the log for a new session.
func (l *Log) Reset() {
	l.records = nil
}

// Len returns the number of records.
func (l *Log) Len() int {
	return len(l.records)
}

// Last returns the most recent record.
func (l *Log) Last() (Record, bool) {
	if len(l.records) == 0 {
		return Record{}, false
	}
	return l.records[len(l.records)-1], true
}

// Snapshot returns a copy of the records in recording order.
func (l *Log) Snapshot() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}
