// Package providers implements HTTP clients for the supported remote
// completion back-ends: OpenAI-style chat completions, Anthropic-style
// messages, and Gemini-style generateContent.
//
// Each client issues exactly one request per completion; there is no retry
// logic. A non-2xx response, a transport failure, or an unexpected response
// shape surfaces as a *RemoteCallError carrying the provider name and the
// underlying cause. Each client also exposes the provider's lightweight
// model-listing endpoint, used for credential verification.
package providers
