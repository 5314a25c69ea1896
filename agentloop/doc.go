// Package agentloop drives one conversational turn of a tool-using agent.
//
// A turn runs in rounds: build a prompt from the round history, fetch a
// model response, validate and execute the requested tool calls with
// PreToolUse and PostToolUse hooks around each, record the round, check for
// repetition, and repeat until the model answers without tool calls or the
// round budget runs out.
//
// The loop does not talk to a model or run tools itself. It is wired to
// collaborators:
//
//   - PromptBuilder renders rounds into messages (HistoryPromptBuilder).
//   - Fetcher performs one model exchange (ClientFetcher over backend.Client).
//   - EndpointProvider picks the model once per turn (CatalogEndpointProvider).
//   - ToolExecutor and ToolValidator run and check tools (ToolRegistry).
//   - HookDispatcher runs lifecycle hooks (HookRegistry, CommandHook).
//   - OutputSink and UsageSink receive output and token counts (EventSink,
//     UsageTotals).
//
// # Quick Start
//
//	tools := agentloop.NewToolRegistry()
//	loop, err := agentloop.NewToolCallingLoop(
//	    agentloop.TurnRequest{Prompt: "Summarize README.md"},
//	    agentloop.DefaultLoopConfig(),
//	    agentloop.Options{
//	        Prompts:   agentloop.HistoryPromptBuilder{Tools: tools},
//	        Fetcher:   agentloop.NewClientFetcher(client, nil),
//	        Endpoints: agentloop.CatalogEndpointProvider{DefaultProvider: "anthropic"},
//	        Tools:     tools,
//	        Validator: tools,
//	    })
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := loop.Run(ctx, sink)
package agentloop
