// Package backend is the model backend layer used by the tool-calling loop.
//
// It defines provider-neutral message, request and response types, an
// Adapter interface that each provider implements, and a Client that routes
// requests to a registered adapter through an optional middleware chain.
//
// The concrete adapter wraps gollm (github.com/teilomillet/gollm):
//
//	adapter, err := backend.NewGollmAdapter("openai", os.Getenv("OPENAI_API_KEY"))
//	client := backend.NewClient(backend.WithAdapter("openai", adapter))
//
//	resp, err := client.Complete(ctx, backend.Request{
//	    Model:    "gpt-5.2",
//	    Messages: []backend.Message{backend.UserMessage("Hello")},
//	})
//
// Transport failures are reported through a small error hierarchy rooted at
// SDKError; IsRetryable classifies them and Retry applies a RetryPolicy.
// Known models live in the Models catalog (LookupModel, ModelsFor).
package backend
