package command

import (
	"github.com/sandevgo/recall/internal/core"
)

type Deps struct {
	Provider     string
	State        core.GlobalState
	Models       core.ModelLister
	Threads      core.ThreadsRepository
	Messages     core.MessagesRepository
	Retrieval    core.RetrievalLog
	HistoryLimit int
}

// NewRouter wires every slash command, /help included.
func NewRouter(d Deps) *Router {
	var router *Router
	help := NewHelpCommand(func() []core.Command { return router.ListCommands() })

	router = New([]core.Command{
		NewNewThreadCommand(d.State),
		NewThreadsCommand(d.Threads, d.State),
		NewUseCommand(d.State),
		NewHistoryCommand(d.Messages, d.State, d.HistoryLimit),
		NewStatsCommand(d.Retrieval),
		NewModelCommand(d.Provider, d.State, d.Models),
		help,
	})
	return router
}
