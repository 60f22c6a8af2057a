// Package openaistt transcribes audio with the OpenAI speech-to-text API.
//
// It is the hosted alternative to the local WhisperX backend. Requests are
// paced by a token-bucket limiter and retried with exponential backoff on
// rate limits, timeouts and server errors.
package openaistt
