package core

import "context"

type ThreadsRepository interface {
	CreateThread(ctx context.Context, name string) (Thread, error)
	GetThread(ctx context.Context, id int64) (Thread, error)
	ListThreads(ctx context.Context) ([]Thread, error)
}

type MessagesRepository interface {
	AppendMessage(ctx context.Context, threadID int64, msg Message) (int64, error)
	Candidates(ctx context.Context, threadID int64) (CandidateSet, error)
	History(ctx context.Context, threadID int64, limit int) ([]Message, error)
}

type RetrievalLog interface {
	Record(ctx context.Context, entry RetrievalEntry)
	Stats(ctx context.Context) (RetrievalStats, []RetrievalEntry, error)
}

type KeyValidator interface {
	Validate(key string) (KeyInfo, bool)
}
