package watcher

const (
	Created  Kind = "created"
	Modified Kind = "modified"
	Deleted  Kind = "deleted"
	Moved    Kind = "moved"
)

type Kind string
type EventsChannel <-chan Event

type Event struct {
	Kind Kind
	// Path is the affected entry; for Moved it is the source.
	Path string
	// DestPath is set for Moved only.
	DestPath string
	IsDir    bool
}
