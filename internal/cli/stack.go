package cli

import (
	"fmt"

	"github.com/soyeahso/finchat/internal/agent"
	"github.com/soyeahso/finchat/internal/auth"
	"github.com/soyeahso/finchat/internal/config"
	"github.com/soyeahso/finchat/internal/finance"
	"github.com/soyeahso/finchat/internal/hooks"
	"github.com/soyeahso/finchat/internal/identity"
	"github.com/soyeahso/finchat/internal/llm"
	"github.com/soyeahso/finchat/internal/logging"
	"github.com/soyeahso/finchat/internal/store"
)

// stack is the wired chat backend shared by serve and chat.
type stack struct {
	finance  *finance.DB
	memDB    *store.DB
	memory   *store.MemoryStore
	hooks    *hooks.Manager
	auth     *auth.Authenticator
	dispatch *agent.Dispatcher
}

// openStack opens both databases and wires login, the SQL agent and the
// dispatcher. The finance database is always opened read-only.
func openStack(cfg config.Config, log *logging.Logger) (_ *stack, err error) {
	st := &stack{}
	defer func() {
		if err != nil {
			st.Close()
		}
	}()

	st.finance, err = finance.Open(cfg.Database.Finance, finance.Options{ReadOnly: true}, log)
	if err != nil {
		return nil, fmt.Errorf("opening finance database: %w", err)
	}

	st.memDB, err = store.Open(cfg.Database.Memory, log)
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}
	st.memory = store.NewMemoryStore(st.memDB)

	st.hooks = hooks.NewManager(log)
	if n := hooks.Register(st.hooks, cfg.Hooks); n > 0 {
		log.Info().Int("count", n).Msg("command hooks registered")
	}

	registry, err := llm.NewRegistryFromConfig(cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	log.Info().Strs("providers", registry.List()).Str("model", cfg.LLM.Model).Msg("LLM configured")

	client := agent.NewFailoverClient(registry, cfg.LLM.Model, cfg.LLM.Fallbacks, log)
	tools := agent.NewToolRegistry(agent.SQLTools(st.finance)...)
	sqlAgent := agent.NewSQLAgent(agent.SQLAgentConfig{
		MaxIterations: cfg.Chat.MaxIterations,
		MaxTokens:     cfg.LLM.MaxTokens,
		Temperature:   cfg.LLM.Temperature,
	}, client, tools, log)

	st.dispatch = agent.NewDispatcher(st.memory, sqlAgent, st.hooks,
		agent.DispatcherConfig{HistoryWindow: cfg.Chat.HistoryWindow}, log)
	st.auth = auth.New(identity.NewResolver(st.finance.SQL(), log), st.memory, st.hooks, log)

	return st, nil
}

// Close releases both databases.
func (s *stack) Close() {
	if s.memDB != nil {
		s.memDB.Close()
	}
	if s.finance != nil {
		s.finance.Close()
	}
}
